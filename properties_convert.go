package mq

import "github.com/tern-io/mqtt/internal/packets"

// copyPresent copies src into *dst when presence&bit is set, the pattern
// shared by every optional numeric property in both conversion directions
// below; it collapses what would otherwise be one repeated if-block per
// field.
func copyPresent[T any](presence uint32, bit uint32, src T, dst **T) {
	if presence&bit != 0 {
		v := src
		*dst = &v
	}
}

// toPublicProperties converts a decoded wire Properties into the public,
// receive-side Properties shape. Returns nil when internal carries nothing
// an application would care about.
func toPublicProperties(internal *packets.Properties) *Properties {
	if internal == nil || isEmpty(internal) {
		return nil
	}

	props := &Properties{UserProperties: make(map[string]string, len(internal.UserProperties))}

	if internal.Presence&packets.PresContentType != 0 {
		props.ContentType = internal.ContentType
	}
	if internal.Presence&packets.PresResponseTopic != 0 {
		props.ResponseTopic = internal.ResponseTopic
	}
	if internal.Presence&packets.PresReasonString != 0 {
		props.ReasonString = internal.ReasonString
	}
	if len(internal.CorrelationData) > 0 {
		props.CorrelationData = internal.CorrelationData
	}
	if len(internal.SubscriptionIdentifier) > 0 {
		props.SubscriptionIdentifier = internal.SubscriptionIdentifier
	}

	copyPresent(internal.Presence, packets.PresMessageExpiryInterval, internal.MessageExpiryInterval, &props.MessageExpiry)
	copyPresent(internal.Presence, packets.PresPayloadFormatIndicator, internal.PayloadFormatIndicator, &props.PayloadFormat)
	copyPresent(internal.Presence, packets.PresWillDelayInterval, internal.WillDelayInterval, &props.WillDelayInterval)
	copyPresent(internal.Presence, packets.PresSessionExpiryInterval, internal.SessionExpiryInterval, &props.SessionExpiryInterval)

	for _, up := range internal.UserProperties {
		props.UserProperties[up.Key] = up.Value
	}

	return props
}

// toInternalProperties converts application-facing Properties into the wire
// representation, setting the Presence bit for every field actually given.
func toInternalProperties(public *Properties) *packets.Properties {
	if public == nil {
		return nil
	}

	props := &packets.Properties{}

	setString(&props.Presence, packets.PresContentType, public.ContentType, &props.ContentType)
	setString(&props.Presence, packets.PresResponseTopic, public.ResponseTopic, &props.ResponseTopic)
	setString(&props.Presence, packets.PresReasonString, public.ReasonString, &props.ReasonString)

	if len(public.CorrelationData) > 0 {
		props.CorrelationData = public.CorrelationData
	}

	setOptional(&props.Presence, packets.PresMessageExpiryInterval, public.MessageExpiry, &props.MessageExpiryInterval)
	setOptional(&props.Presence, packets.PresPayloadFormatIndicator, public.PayloadFormat, &props.PayloadFormatIndicator)
	setOptional(&props.Presence, packets.PresWillDelayInterval, public.WillDelayInterval, &props.WillDelayInterval)
	setOptional(&props.Presence, packets.PresSessionExpiryInterval, public.SessionExpiryInterval, &props.SessionExpiryInterval)

	if len(public.UserProperties) > 0 {
		props.UserProperties = make([]packets.UserProperty, 0, len(public.UserProperties))
		for key, value := range public.UserProperties {
			props.UserProperties = append(props.UserProperties, packets.UserProperty{Key: key, Value: value})
		}
	}

	return props
}

// setOptional sets *dst and the presence bit when opt is non-nil; the
// counterpart to copyPresent for the outbound (public -> wire) direction,
// where "set" means a non-nil pointer rather than a presence bitmask.
func setOptional[T any](presence *uint32, bit uint32, opt *T, dst *T) {
	if opt == nil {
		return
	}
	*dst = *opt
	*presence |= bit
}

func setString(presence *uint32, bit uint32, s string, dst *string) {
	if s == "" {
		return
	}
	*dst = s
	*presence |= bit
}

// isEmpty reports whether decoded wire properties carry nothing worth
// surfacing to the application as a non-nil Properties value.
func isEmpty(p *packets.Properties) bool {
	if p == nil {
		return true
	}
	return p.Presence == 0 &&
		len(p.CorrelationData) == 0 &&
		len(p.UserProperties) == 0 &&
		len(p.SubscriptionIdentifier) == 0 &&
		len(p.AuthenticationData) == 0
}
