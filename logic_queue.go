package mq

// processPublishQueue drains as much of the backlog as the server's
// ReceiveMaximum currently allows, stopping the moment sendPublishLocked
// reports the outgoing side is full rather than trying every entry.
func (c *Client) processPublishQueue() {
	limit := int(c.serverCaps.ReceiveMaximum)
	unlimited := limit == 0

	for len(c.publishQueue) > 0 {
		if !unlimited && c.inFlightCount >= limit {
			return
		}
		if !c.sendPublishLocked(c.publishQueue[0]) {
			return
		}
		c.publishQueue = c.publishQueue[1:]
	}
}
