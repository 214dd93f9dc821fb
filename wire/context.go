package wire

import "context"

type channelKey struct{}

func withChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey{}, channel)
}

// Channel returns the concrete channel being dispatched, or "" when ctx
// does not come from a dispatch.
func Channel(ctx context.Context) string {
	ch, _ := ctx.Value(channelKey{}).(string)
	return ch
}
