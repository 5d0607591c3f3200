// Package domain implements the weather/traffic analysis core: series
// normalization, extreme-event detection, correlation analysis, and report
// assembly. Every function here is pure and synchronous over immutable
// inputs; all I/O lives in the adapters.
//
// # Data Sources
//
// Raw records arrive from upstream fetchers (NOAA Climate Data Online,
// OpenWeatherMap, municipal traffic feeds) as flat key/value maps. Field
// names differ per source (NOAA daily summaries use TMAX/PRCP/AWND/SNOW,
// OpenWeatherMap uses temp/rain/wind_speed), so each source carries a
// FieldMapping that resolves the heterogeneity once, at the normalizer
// boundary. The analysis code only ever sees canonical metric names.
//
// # Units
//
//	temperature       degrees Fahrenheit
//	precipitation     inches (liquid equivalent)
//	wind_speed        miles per hour
//	snowfall          inches
//	volume            vehicles per sampling interval
//	avg_speed         miles per hour
//	congestion_index  dimensionless, 0 (free flow) to 10 (gridlock)
//
// # Detection Semantics
//
// A rule qualifies observations strictly above (or below) its threshold. A
// run of consecutive qualifying observations becomes an ExtremeEvent once
// its inclusive span (last timestamp minus first, plus one sampling
// interval) reaches the rule's minimum duration, so three consecutive
// daily readings count as three days. A timestamp gap larger than the rule
// set's MaxGap closes the current run rather than bridging it; missing data
// never extends an event. A run still open at the end of the input is
// closed at the last observation and emitted.
//
// Default thresholds follow common US operational criteria:
//
//	heatwave      temperature    > 90 °F   for 3 sampling intervals
//	cold_spell    temperature    < 32 °F   for 3 sampling intervals
//	heavy_precip  precipitation  > 2.0 in  for 1 sampling interval
//	snowstorm     snowfall       > 6.0 in  for 1 sampling interval
//	high_wind     wind_speed     > 20 mph  for 1 sampling interval
//
// The severity score integrates the excess over the threshold across the
// run (sum of |value − threshold| per qualifying observation), so longer
// and more extreme runs score strictly higher.
//
// # Correlation Semantics
//
// Correlate aligns a weather series against a traffic series by nearest
// timestamp within a tolerance, shifts the traffic series through a range
// of candidate lags, and reports the lag that maximizes the absolute
// Pearson coefficient. Statistical undefined-ness is always explicit: too
// few aligned pairs or a zero-variance column yields a result with
// Defined=false and a reason, never a NaN and never a coefficient of zero
// that could be misread as "no correlation".
package domain
