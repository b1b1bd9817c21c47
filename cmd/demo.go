package cmd

import (
	"context"
	"sync"

	"github.com/google/uuid"
	graphql "github.com/graph-gophers/graphql-go"
)

// demoSchema is a small in-memory message board, just enough surface
// to exercise queries, mutations and subscriptions from the tools.
const demoSchema = `
	schema {
		query: Query
		mutation: Mutation
		subscription: Subscription
	}

	type Query {
		messages: [Message!]!
	}

	type Mutation {
		post(text: String!): Message!
	}

	type Subscription {
		messagePosted: Message!
	}

	type Message {
		id: ID!
		text: String!
	}
`

type messageResolver struct {
	id   graphql.ID
	text string
}

func (m *messageResolver) ID() graphql.ID { return m.id }

func (m *messageResolver) Text() string { return m.text }

type demoResolver struct {
	mu        sync.Mutex
	messages  []*messageResolver
	listeners map[string]chan *messageResolver
}

func newDemoResolver() *demoResolver {
	return &demoResolver{listeners: map[string]chan *messageResolver{}}
}

func (r *demoResolver) Messages() []*messageResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*messageResolver{}, r.messages...)
}

func (r *demoResolver) Post(args struct{ Text string }) *messageResolver {
	msg := &messageResolver{id: graphql.ID(uuid.NewString()), text: args.Text}

	r.mu.Lock()
	r.messages = append(r.messages, msg)
	for _, ch := range r.listeners {
		// Slow subscribers miss events rather than block the mutation.
		select {
		case ch <- msg:
		default:
		}
	}
	r.mu.Unlock()

	return msg
}

func (r *demoResolver) MessagePosted(ctx context.Context) <-chan *messageResolver {
	ch := make(chan *messageResolver, 8)
	id := uuid.NewString()

	r.mu.Lock()
	r.listeners[id] = ch
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
		close(ch)
	}()

	return ch
}
