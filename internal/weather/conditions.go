package weather

// Condition-code mappings. Each provider has its own integer code space;
// both map totally onto the shared taxonomy. Codes not listed map to
// ConditionClear: a reading with an exotic code is still a reading, and the
// site would rather show "clear" than fail the whole payload.

// mapWMOCode maps Open-Meteo's WMO weather interpretation codes.
func mapWMOCode(code int) Condition {
	switch code {
	case 0:
		return ConditionClear
	case 1, 2:
		return ConditionPartlyCloudy
	case 3:
		return ConditionCloudy
	case 45, 48:
		return ConditionFog
	case 51, 53, 55, 56, 57:
		return ConditionLightRain
	case 61, 63, 66, 80, 81:
		return ConditionRain
	case 65, 67, 82:
		return ConditionHeavyRain
	case 71, 73, 77, 85:
		return ConditionSnow
	case 75, 86:
		return ConditionHeavySnow
	case 95, 96, 99:
		return ConditionThunder
	default:
		return ConditionClear
	}
}

// mapOpenWeatherID maps OpenWeatherMap condition ids (group 2xx thunder,
// 3xx drizzle, 5xx rain, 6xx snow, 7xx atmosphere, 800 clear, 80x clouds).
func mapOpenWeatherID(id int) Condition {
	switch {
	case id >= 200 && id < 300:
		return ConditionThunder
	case id >= 300 && id < 400:
		return ConditionLightRain
	case id == 500 || id == 520:
		return ConditionLightRain
	case id == 501 || id == 511 || id == 521:
		return ConditionRain
	case id >= 502 && id <= 504 || id == 522 || id == 531:
		return ConditionHeavyRain
	case id == 602 || id == 622:
		return ConditionHeavySnow
	case id >= 600 && id < 700:
		return ConditionSnow
	case id == 741 || id == 701:
		return ConditionFog
	case id == 800:
		return ConditionClear
	case id == 801 || id == 802:
		return ConditionPartlyCloudy
	case id == 803 || id == 804:
		return ConditionCloudy
	default:
		return ConditionClear
	}
}

// conditionSeverity orders the taxonomy for picking a day's representative
// condition out of its 3-hour sub-slots: the most severe slot wins.
func conditionSeverity(c Condition) int {
	switch c {
	case ConditionThunder:
		return 9
	case ConditionHeavySnow:
		return 8
	case ConditionSnow:
		return 7
	case ConditionHeavyRain:
		return 6
	case ConditionRain:
		return 5
	case ConditionLightRain:
		return 4
	case ConditionFog:
		return 3
	case ConditionCloudy:
		return 2
	case ConditionPartlyCloudy:
		return 1
	default:
		return 0
	}
}
