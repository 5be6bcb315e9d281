package model

// WorkDaySetting is a per-barber, per-weekday override of the shop's working
// hours. StartTime/EndTime are civil "HH:MM" strings and are only meaningful
// when IsWorking is true.
type WorkDaySetting struct {
	BarberID  string
	DayOfWeek string
	IsWorking bool
	StartTime string
	EndTime   string
}

// ShopDefaults are the fallback work hours used when a barber has no
// weekday-specific override.
type ShopDefaults struct {
	StartTime string
	EndTime   string
	OpenDays  []string
}

func (d ShopDefaults) Open(weekday string) bool {
	for _, day := range d.OpenDays {
		if day == weekday {
			return true
		}
	}
	return false
}
