package mq

// WithAlias opts a v5.0 publish into topic alias use, active only once
// WithTopicAliasMaximum has been negotiated with the server. The first
// aliased publish to a topic sends the full name and claims an alias ID;
// every aliased publish after that sends the alias alone and omits the
// topic name. Allocation and tracking are automatic; once every
// negotiated alias is in use, a publish to a new topic takes over the
// least-recently-used alias and sends its full topic name with it.
func WithAlias() PublishOption {
	return func(o *PublishOptions) {
		o.UseAlias = true
	}
}
