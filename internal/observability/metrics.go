package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MCartCountItems          MetricKey = "cart_count_items"
	MCartSignalBumps         MetricKey = "cart_signal_bumps_total"
)

// Keys lists every metric the storefront emits.
func Keys() []MetricKey {
	return []MetricKey{
		MUsecaseRequests,
		MUsecaseDuration,
		MHTTPRequests,
		MHTTPRequestDuration,
		MExternalRequests,
		MExternalRequestDuration,
		MCartCountItems,
		MCartSignalBumps,
	}
}
