package router

// Subscription is one Subscribe call. It is immutable; remove it with Router.Unsubscribe.
type Subscription struct {
	id        uint64
	topics    []string
	exclusive bool
	handler   Handler
}

// ID returns the router-unique subscription id.
func (s *Subscription) ID() uint64 {
	return s.id
}

// Topics returns the topics the subscription was registered on.
func (s *Subscription) Topics() []string {
	return append([]string(nil), s.topics...)
}

// Exclusive reports whether the subscription made its topics exclusive.
func (s *Subscription) Exclusive() bool {
	return s.exclusive
}

type subscribeConfig struct {
	exclusive bool
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscribeConfig)

// WithExclusive marks the subscribed topics exclusive.
func WithExclusive() SubscribeOption {
	return func(c *subscribeConfig) {
		c.exclusive = true
	}
}
