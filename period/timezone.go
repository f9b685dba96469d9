package period

import (
	"time"
)

// DefaultZone is the effective zone when neither the period nor the host
// config names one.
const DefaultZone = "America/New_York"

// zoneOffsets is a static offset table for the supported zones. It is
// DST-naive: offsets are the standard-time offsets, and session computations
// near DST transitions are unspecified. Swapping this table for
// time.LoadLocation is the single change needed for full tz support.
var zoneOffsets = map[string]time.Duration{
	"UTC":              0,
	"America/New_York": -5 * time.Hour,
	"Europe/London":    0,
	"Asia/Tokyo":       9 * time.Hour,
}

// EffectiveZone resolves zone precedence: the period's own zone wins over the
// host-config zone, which wins over the default.
func EffectiveZone(specZone, configZone string) string {
	if specZone != "" {
		return specZone
	}
	if configZone != "" {
		return configZone
	}
	return DefaultZone
}

// ZoneOffset returns the static offset for a supported zone. Unknown zones
// fall back to UTC.
func ZoneOffset(zone string) time.Duration {
	if off, ok := zoneOffsets[zone]; ok {
		return off
	}
	return 0
}

// ConvertToZone translates ts to the wall clock of the given zone. The result
// carries a fixed-offset location so that Hour/Minute/Day read as wall-clock
// values in that zone.
func ConvertToZone(ts time.Time, zone string) time.Time {
	off := ZoneOffset(zone)
	return ts.UTC().In(time.FixedZone(zone, int(off.Seconds())))
}

// IsWithinSession reports whether ts falls inside the session window,
// evaluated on the wall clock of the session's zone (or defaultZone when the
// session names none). Wrap-around sessions use the midnight-straddling
// union.
func IsWithinSession(ts time.Time, s Session, defaultZone string) bool {
	zone := s.Timezone
	if zone == "" {
		zone = defaultZone
	}
	local := ConvertToZone(ts, zone)
	currentMinutes := local.Hour()*60 + local.Minute()

	start, end := s.startMinutes(), s.endMinutes()
	if start > end {
		return currentMinutes >= start || currentMinutes <= end
	}
	return currentMinutes >= start && currentMinutes <= end
}
