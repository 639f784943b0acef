// Package httpapi is toastd's control surface: a chi router exposing the
// scheduler's caller API over JSON, the websocket presenter, Prometheus
// metrics and health. Mutating calls are recorded in the audit trail when
// storage is enabled.
package httpapi
