// Package deviceapi provides an HTTP client for the noise monitor's local REST API.
//
// The device exposes a small, stateless surface: a JSON status document, a JSON
// Wi-Fi scan list, two plain-text logs, and a set of GET commands that each
// change one group of settings. Commands never return a useful body; their
// effect is observed on the next status read.
//
// # Status Decoding
//
// ParseStatus decodes /status field by field. A field the firmware omits, or
// sends with the wrong type, keeps its DefaultStatus value, so callers never
// branch on a missing key. When the whole request fails, StatusOrDefault hands
// back a fully populated DefaultStatus together with the error.
//
// # Usage Example
//
//	client := deviceapi.NewClient("192.168.4.1", 80)
//
//	st, err := client.StatusOrDefault(ctx)
//	if err != nil {
//	    log.Printf("status: %s", deviceapi.GetShortErrorMessage(err))
//	}
//	fmt.Println(st.Summary())
//
//	if err := client.SetThresholds(ctx, 60, 85); err != nil {
//	    log.Fatal(err)
//	}
//
//	res := client.Verify(ctx, nil,
//	    deviceapi.ExpectInt("yellow", 60, func(s *deviceapi.DeviceStatus) int { return s.Yellow }))
//
// # Circuit Breaker
//
// The status path runs behind a circuit breaker. After repeated transport
// failures it opens and Status fails fast with an ErrTypeUnavailable error
// until the breaker's timeout passes and a probe succeeds.
//
// # Error Handling
//
// All errors are *DeviceError values carrying an ErrorType. Network errors are
// classified into timeout, refused, DNS and unreachable subtypes, and
// GetShortErrorMessage / GetTroubleshootingHint turn them into operator text.
package deviceapi
