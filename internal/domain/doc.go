// Package domain models the Met Office DataHub hourly point forecast and its
// conversion into InfluxDB measurement points.
//
// # Data Source
//
// Forecasts come from the DataHub site-specific endpoint
// (/forecasts/point/hourly), queried by latitude and longitude. The response
// is a GeoJSON FeatureCollection with a single feature whose properties hold
// the hourly series:
//
//	{"features": [{"properties": {"timeSeries": [
//	    {"time": "2024-01-01T00:00Z", "screenTemperature": 12, "windSpeed10m": 3.1, ...},
//	    ...
//	]}}]}
//
// Time format:
//
//	ISO 8601 in UTC. DataHub omits seconds ("2024-01-01T00:00Z"); full RFC 3339
//	values ("2024-01-01T00:00:00Z") are accepted too.
//
// Numeric encoding:
//
//	Fields are a mix of integer literals (significantWeatherCode, visibility,
//	uvIndex) and decimals (screenTemperature, windSpeed10m). Whether a value is
//	written as 12 or 12.0 varies between forecasts, so every integer literal is
//	widened to float64. InfluxDB refuses a field whose type changes between
//	writes of the same measurement.
//
// # Throttling
//
// When the client exceeds its plan quota the gateway answers with
//
//	{"message": "Message throttled out", "nextAccessTime": "2099-Jan-01 00:00:00+0000 GMT"}
//
// nextAccessTime uses the layout [RetryAtLayout]. An unreadable value falls
// back to [FallbackDelay]; see [ComputeDelay].
//
// # Measurement Points
//
// Every series entry becomes one point named "met_weather" tagged
// name=met_weather. The entry's time becomes the point timestamp and the
// remaining scalar entries become fields. Nested values and nulls are dropped
// because line protocol has no encoding for them.
package domain
