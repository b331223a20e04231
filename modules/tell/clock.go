package tell

import (
	"strings"
	"time"
)

// todayLayout matches the day-month prefix that delivery trims from
// timestamps recorded earlier the same UTC day.
const todayLayout = "02 Jan"

type clock struct {
	now         func() time.Time
	layout      string
	defaultZone *time.Location
	zones       map[string]*time.Location
}

// stamp formats the current time in recipient's configured timezone.
func (c clock) stamp(recipient string) string {
	zone := c.defaultZone
	if override, ok := c.zones[foldIdentifier(recipient)]; ok {
		zone = override
	}

	return c.now().In(zone).Format(c.layout)
}

// trimToday drops today's "02 Jan" prefix and the separator after it.
func (c clock) trimToday(timestamp string) string {
	today := c.now().UTC().Format(todayLayout)
	if !strings.HasPrefix(timestamp, today) {
		return timestamp
	}
	if len(timestamp) <= len(today)+1 {
		return ""
	}

	return timestamp[len(today)+1:]
}
