package realtime

import (
	"fmt"

	"github.com/google/uuid"
)

// Topic naming. One topic per active channel carries message/thread changes
// filtered server-side by channel id plus attachment/reaction changes
// (unfiltered; the client filters those by parent lookup). One topic per city
// carries event/attendee changes.
const (
	topicChatPrefix   = "chat-"
	topicEventsPrefix = "events-"
)

func ChannelTopic(channelID uuid.UUID) string {
	return fmt.Sprintf("%s%s", topicChatPrefix, channelID)
}

func CityTopic(cityID uuid.UUID) string {
	return fmt.Sprintf("%s%s", topicEventsPrefix, cityID)
}
