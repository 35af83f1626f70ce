package synthetic

import (
	"math"
	"math/rand"

	"github.com/couchcryptid/canopy-watch/internal/domain"
)

// seedScale spreads abs(sin(lat*lon)), which lies in [0,1], across the seed
// space so nearby regions draw distinct value streams.
const seedScale = 1 << 31

// Per-kind salts decorrelate the three payloads generated for one region.
const (
	saltSatellite int64 = iota + 1
	saltWeather
	saltAirQuality
)

// rngFor builds the PRNG for one region and payload kind. The seed depends
// only on the coordinates, so repeated calls for the same region produce
// identical output. rand.Rand is not thread-safe; a fresh instance per call
// keeps the package safe for concurrent fetches.
func rngFor(region domain.Region, salt int64) *rand.Rand {
	seed := int64(math.Abs(math.Sin(region.Lat*region.Lon)) * seedScale)
	return rand.New(rand.NewSource(seed + salt))
}

// Satellite generates a plausible reflectance payload for a region. Every
// field stays inside the domain real data occupies: NDVI in [-1,1], loss and
// cloud cover in [0,100], bands as positive reflectance fractions. The band
// values are derived from the NDVI so consumers recomputing the index from
// raw bands get a consistent answer.
func Satellite(region domain.Region) *domain.SatelliteData {
	rng := rngFor(region, saltSatellite)

	prev := 0.35 + rng.Float64()*0.5
	lossPct := rng.Float64() * 35
	ndvi := prev * (1 - lossPct/100)

	nir := 0.25 + rng.Float64()*0.35
	red := nir * (1 - ndvi) / (1 + ndvi)

	return &domain.SatelliteData{
		NDVI:              round3(ndvi),
		PreviousNDVI:      round3(prev),
		NDVIChange:        round3(ndvi - prev),
		VegetationLossPct: round1(lossPct),
		RedBand:           round3(red),
		NIRBand:           round3(nir),
		BlueBand:          round3(0.02 + rng.Float64()*0.08),
		GreenBand:         round3(0.05 + rng.Float64()*0.12),
		CloudCoverPct:     round1(rng.Float64() * 95),
	}
}

// Weather generates a plausible meteorological payload for a region. The
// temperature tracks latitude so polar and equatorial regions read sensibly.
func Weather(region domain.Region) *domain.WeatherData {
	rng := rngFor(region, saltWeather)

	temp := 28 - math.Abs(region.Lat)*0.35 + (rng.Float64()*10 - 5)
	precip := rng.Float64()
	cloud := round1(rng.Float64() * 95)

	return &domain.WeatherData{
		TemperatureC:    round1(temp),
		HumidityPct:     round1(35 + rng.Float64()*60),
		WindSpeedMS:     round1(rng.Float64() * 18),
		PrecipitationMM: round1(precip * precip * 25),
		CloudCoverPct:   cloud,
		CloudImpact:     domain.DeriveCloudImpact(cloud),
	}
}

// AirQuality generates a plausible pollution payload for a region. Particulate
// readings correlate with the drawn AQI the way real monitors report them.
func AirQuality(region domain.Region) *domain.AirQualityData {
	rng := rngFor(region, saltAirQuality)

	aqi := 15 + rng.Intn(146)
	pm25 := float64(aqi)*0.4 + rng.Float64()*10

	return &domain.AirQualityData{
		AQI:          aqi,
		PM25:         round1(pm25),
		PM10:         round1(pm25 * (1.4 + rng.Float64()*0.8)),
		O3:           round1(10 + rng.Float64()*110),
		NO2:          round1(5 + rng.Float64()*65),
		HealthImpact: domain.DeriveHealthImpact(aqi),
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
