package engine

import (
	"context"
	"time"

	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
)

// fakeAPI is an in-memory stand-in for the Slack client. It records every
// mutation in call order.
type fakeAPI struct {
	channels map[string]domain.Channel

	archiveErr map[string]error
	renameErr  map[string]error
	postErr    map[string]error
	joinErr    map[string]error
	descErr    map[string]error

	calls    []string
	archived []string
	posts    map[string]string
}

func newFakeAPI(channels ...domain.Channel) *fakeAPI {
	f := &fakeAPI{
		channels:   map[string]domain.Channel{},
		archiveErr: map[string]error{},
		renameErr:  map[string]error{},
		postErr:    map[string]error{},
		joinErr:    map[string]error{},
		descErr:    map[string]error{},
		posts:      map[string]string{},
	}
	for _, ch := range channels {
		f.channels[ch.ID] = ch
	}
	return f
}

func (f *fakeAPI) record(op, id string) {
	f.calls = append(f.calls, op+":"+id)
}

func (f *fakeAPI) ListChannels(ctx context.Context, cursor string, limit int) ([]domain.Channel, string, error) {
	var out []domain.Channel
	for _, ch := range f.channels {
		out = append(out, ch)
	}
	return out, "", nil
}

func (f *fakeAPI) GetChannel(ctx context.Context, id string) (*domain.Channel, error) {
	ch, ok := f.channels[id]
	if !ok {
		return nil, &domain.RemoteRejection{Cause: domain.RejectNotFound}
	}
	return &ch, nil
}

func (f *fakeAPI) LatestActivity(ctx context.Context, id string) (time.Time, string, error) {
	return time.Time{}, "", nil
}

func (f *fakeAPI) Archive(ctx context.Context, id string) error {
	f.record("archive", id)
	if err := f.archiveErr[id]; err != nil {
		return err
	}
	ch, ok := f.channels[id]
	if !ok {
		return &domain.RemoteRejection{Cause: domain.RejectNotFound}
	}
	ch.IsArchived = true
	f.channels[id] = ch
	f.archived = append(f.archived, id)
	return nil
}

func (f *fakeAPI) Rename(ctx context.Context, id, name string) (string, error) {
	f.record("rename", id)
	if err := f.renameErr[id]; err != nil {
		return "", err
	}
	ch, ok := f.channels[id]
	if !ok {
		return "", &domain.RemoteRejection{Cause: domain.RejectNotFound}
	}
	ch.Name = name
	f.channels[id] = ch
	return name, nil
}

func (f *fakeAPI) SetDescription(ctx context.Context, id, description string) error {
	f.record("describe", id)
	if err := f.descErr[id]; err != nil {
		return err
	}
	ch, ok := f.channels[id]
	if !ok {
		return &domain.RemoteRejection{Cause: domain.RejectNotFound}
	}
	ch.Description = description
	f.channels[id] = ch
	return nil
}

func (f *fakeAPI) PostMessage(ctx context.Context, id, text string) error {
	f.record("post", id)
	if err := f.postErr[id]; err != nil {
		return err
	}
	f.posts[id] = text
	return nil
}

func (f *fakeAPI) Join(ctx context.Context, id string) error {
	f.record("join", id)
	if err := f.joinErr[id]; err != nil {
		return err
	}
	return nil
}
