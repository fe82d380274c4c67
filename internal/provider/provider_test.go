package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/meting-gateway/internal/meting"
)

type stubClient struct{ server string }

func (s *stubClient) Search(context.Context, string, SearchOptions) (meting.Payload, error) {
	return meting.TextPayload(s.server), nil
}
func (s *stubClient) Song(context.Context, string) (meting.Payload, error) { return meting.NullPayload(), nil }
func (s *stubClient) Album(context.Context, string) (meting.Payload, error) {
	return meting.NullPayload(), nil
}
func (s *stubClient) Artist(context.Context, string, int) (meting.Payload, error) {
	return meting.NullPayload(), nil
}
func (s *stubClient) Playlist(context.Context, string) (meting.Payload, error) {
	return meting.NullPayload(), nil
}
func (s *stubClient) URL(context.Context, string, int) (meting.Payload, error) {
	return meting.NullPayload(), nil
}
func (s *stubClient) Picture(context.Context, string, int) (meting.Payload, error) {
	return meting.NullPayload(), nil
}
func (s *stubClient) Lyric(context.Context, string) (meting.Payload, error) {
	return meting.NullPayload(), nil
}
func (s *stubClient) Format(bool) {}

func TestRegistry_NewUsesRegisteredFactory(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register("NetEase", func(server string) (Client, error) {
		return &stubClient{server: server}, nil
	})

	client, err := reg.New(" netease ")
	require.NoError(t, err)
	payload, err := client.Search(context.Background(), "", SearchOptions{})
	require.NoError(t, err)
	text, _ := payload.Text()
	require.Equal(t, "netease", text)
	require.Equal(t, []string{"netease"}, reg.Servers())
}

func TestRegistry_FallbackAndUnknown(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	_, err := reg.New("kugou")
	require.ErrorIs(t, err, meting.ErrUnsupportedOperation)

	reg.SetFallback(func(server string) (Client, error) {
		return &stubClient{server: server}, nil
	})
	client, err := reg.New("kugou")
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register("tencent", func(string) (Client, error) {
		return nil, errors.New("no credentials")
	})
	_, err := reg.New("tencent")
	require.ErrorContains(t, err, "build tencent client")
}
