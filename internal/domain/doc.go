// Package domain models the environmental signals and risk assessments
// produced by the canopy-watch analysis pipeline.
//
// # Signals
//
// An analysis observes one geographic region (a named center point plus an
// area size in km) through three upstream signals:
//
//	satellite    reflectance-band statistics for the region's bounding box:
//	             red/NIR/blue/green means, cloud cover, and the NDVI values
//	             derived from them. NDVI = (NIR-red)/(NIR+red), in [-1, 1].
//	weather      current conditions: temperature, humidity, wind,
//	             precipitation, and cloud cover.
//	air quality  pollutant concentrations (PM2.5, PM10, O3, NO2) and the
//	             composite AQI.
//
// Every signal arrives as a [SourceResult], which records where the values
// came from and how much they should be trusted. The pipeline never fails a
// request because an upstream is down; it substitutes bounded synthetic
// values and says so through the tags.
//
// # Origin tags
//
// SourceResult.Origin records why the payload looks the way it does:
//
//	real                the upstream API answered; values are measurements
//	disabled            the source is administratively switched off
//	circuit-open        the source's circuit breaker is open, no call made
//	fallback-from-api-error  the upstream was called and failed after retries
//
// Everything except "real" is synthetic-family data: plausible, in-domain
// values generated deterministically from the region's coordinates. Consumers
// that only care about the real/synthetic distinction use
// [SourceResult.Synthetic]; the concrete tag is kept for diagnostics.
//
// # Quality
//
// Real satellite data is HIGH quality; real weather and air quality data are
// MEDIUM (point observations interpolated over an area); synthetic data is
// always LOW. Quality feeds the confidence model, never the risk score.
//
// # Derived classifications
//
// Cloud impact (weather) and health impact (air quality) are categorical
// inputs to the risk model, derived from raw measurements:
//
//	cloud cover:  >=70% HIGH | >=30% MEDIUM | else LOW
//	AQI:          >150 SEVERE | >100 MODERATE | else MINIMAL
//
// The AQI thresholds follow the EPA breakpoints: AQI up to 100 is
// good-to-moderate air, 101-150 is unhealthy for sensitive groups, and
// anything above 150 is unhealthy for everyone.
//
// # Risk model
//
// A [RiskAssessment] is a pure function of one [Snapshot]:
//
//	vegetation risk  = vegetation loss percentage / 100, clamped to [0,1]
//	weather risk     = 0.30 HIGH cloud impact | 0.15 MEDIUM | 0 otherwise
//	air quality risk = 0.30 SEVERE health impact | 0.15 MODERATE | 0 otherwise
//	composite        = 0.6*vegetation + 0.2*weather + 0.2*air quality
//	level            = HIGH >0.5 | MEDIUM >0.3 | else LOW
//
// Confidence weighs the three sources 0.4/0.3/0.3 with factor 1.0 for real
// data and 0.5 for synthetic, then smooths 70/30 against the region's
// previous confidence when one is known.
//
// # Report identity
//
// Reports carry a random UUID: two analyses of the same region at different
// times are distinct documents, so content-derived IDs (the right call for
// replayed storm events) would collapse history here.
package domain
