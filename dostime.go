package zip

import "time"

// timeToDOSTime converts a UTC time.Time into MS-DOS date and time words, per
// Invariant 2: year in [1980, 2107], 2-second resolution. t must already be
// in UTC; callers that hold a zoned time should call t.UTC() first.
func timeToDOSTime(t time.Time) (date, dosTime uint16) {
	date = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9)
	dosTime = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return
}

// dosTimeToTime is the inverse of timeToDOSTime, returning a time.Time in UTC.
func dosTimeToTime(date, dosTime uint16) time.Time {
	return time.Date(
		int(date>>9)+1980,
		time.Month(date>>5&0xf),
		int(date&0x1f),
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f)*2,
		0,
		time.UTC,
	)
}
