package airquality

import "math"

type breakpoint struct {
	aqiLo, aqiHi   float64
	concLo, concHi float64
}

// US EPA PM2.5 breakpoints (µg/m³, 24h).
var pm25Breakpoints = []breakpoint{
	{0, 50, 0.0, 12.0},
	{51, 100, 12.1, 35.4},
	{101, 150, 35.5, 55.4},
	{151, 200, 55.5, 150.4},
	{201, 300, 150.5, 250.4},
	{301, 400, 250.5, 350.4},
	{401, 500, 350.5, 500.4},
}

// PM25FromAQI converts a PM2.5 sub-index back to a concentration in µg/m³.
func PM25FromAQI(aqi float64) float64 {
	if aqi <= 0 {
		return 0
	}
	for _, bp := range pm25Breakpoints {
		if aqi <= bp.aqiHi {
			if aqi < bp.aqiLo {
				aqi = bp.aqiLo
			}
			return bp.concLo + (aqi-bp.aqiLo)/(bp.aqiHi-bp.aqiLo)*(bp.concHi-bp.concLo)
		}
	}
	last := pm25Breakpoints[len(pm25Breakpoints)-1]
	return last.concLo + (aqi-last.aqiLo)/(last.aqiHi-last.aqiLo)*(last.concHi-last.concLo)
}

// AQIFromPM25 computes the US AQI sub-index of a PM2.5 concentration.
// Concentrations are truncated to 0.1 µg/m³ first, as the EPA tables expect.
func AQIFromPM25(conc float64) float64 {
	if conc <= 0 {
		return 0
	}
	c := math.Floor(conc*10) / 10
	for _, bp := range pm25Breakpoints {
		if c <= bp.concHi {
			if c < bp.concLo {
				c = bp.concLo
			}
			return math.Round(bp.aqiLo + (c-bp.concLo)/(bp.concHi-bp.concLo)*(bp.aqiHi-bp.aqiLo))
		}
	}
	last := pm25Breakpoints[len(pm25Breakpoints)-1]
	return math.Round(last.aqiLo + (c-last.concLo)/(last.concHi-last.concLo)*(last.aqiHi-last.aqiLo))
}
