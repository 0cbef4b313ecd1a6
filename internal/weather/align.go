package weather

// AlignBands trims every band's hourly and daily series so all of them start
// at the same instant and have equal length. Providers answer per-band
// requests independently, and a band occasionally comes back with one extra
// leading or trailing sample (or, for the 3-hour-slot provider, a partial
// leading day); the payload invariant is index-for-index alignment across
// bands in both series.
func AlignBands(bands []BandReading) []BandReading {
	if len(bands) == 0 {
		return bands
	}
	alignHourly(bands)
	alignDaily(bands)
	return bands
}

func alignHourly(bands []BandReading) {
	for _, b := range bands {
		if b.Hourly.Len() == 0 {
			return
		}
	}

	// Latest first-sample across bands is the common start.
	start := bands[0].Hourly.Time[0]
	for _, b := range bands[1:] {
		if b.Hourly.Time[0].After(start) {
			start = b.Hourly.Time[0]
		}
	}

	minLen := -1
	for i := range bands {
		h := &bands[i].Hourly
		skip := 0
		for skip < h.Len() && h.Time[skip].Before(start) {
			skip++
		}
		*h = sliceSeries(*h, skip, h.Len())
		if minLen < 0 || h.Len() < minLen {
			minLen = h.Len()
		}
	}

	for i := range bands {
		h := &bands[i].Hourly
		*h = sliceSeries(*h, 0, minLen)
	}
}

func alignDaily(bands []BandReading) {
	for _, b := range bands {
		if len(b.Daily.Time) == 0 {
			return
		}
	}

	start := bands[0].Daily.Time[0]
	for _, b := range bands[1:] {
		if b.Daily.Time[0].After(start) {
			start = b.Daily.Time[0]
		}
	}

	minLen := -1
	for i := range bands {
		d := &bands[i].Daily
		skip := 0
		for skip < len(d.Time) && d.Time[skip].Before(start) {
			skip++
		}
		*d = sliceDaily(*d, skip, len(d.Time))
		if minLen < 0 || len(d.Time) < minLen {
			minLen = len(d.Time)
		}
	}

	for i := range bands {
		d := &bands[i].Daily
		*d = sliceDaily(*d, 0, minLen)
	}
}

func sliceSeries(s HourlySeries, from, to int) HourlySeries {
	return HourlySeries{
		Time:             s.Time[from:to],
		TemperatureC:     s.TemperatureC[from:to],
		PrecipMM:         s.PrecipMM[from:to],
		SnowfallCM:       s.SnowfallCM[from:to],
		WindSpeedKmh:     s.WindSpeedKmh[from:to],
		WindDirectionDeg: s.WindDirectionDeg[from:to],
		Condition:        s.Condition[from:to],
	}
}

func sliceDaily(s DailySeries, from, to int) DailySeries {
	return DailySeries{
		Time:       s.Time[from:to],
		TempMaxC:   s.TempMaxC[from:to],
		TempMinC:   s.TempMinC[from:to],
		PrecipMM:   s.PrecipMM[from:to],
		SnowfallCM: s.SnowfallCM[from:to],
		Condition:  s.Condition[from:to],
	}
}
