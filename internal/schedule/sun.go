package schedule

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// solarEvent returns the sunrise or sunset instant (UTC) for now's date at
// the site coordinates.
func (site Site) solarEvent(base TimeBase, now time.Time) time.Time {
	rise, set := sunrise.SunriseSunset(site.Latitude, site.Longitude, now.Year(), now.Month(), now.Day())
	if base == TimeSunrise {
		return rise
	}
	return set
}
