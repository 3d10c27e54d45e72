package influxdb

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MaxHistoryRange bounds a single presence history query.
const MaxHistoryRange = 31 * 24 * time.Hour

// PresenceHistory returns the recorded state changes of one host between
// start and end, oldest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - routerID: Router tag value
//   - mac: Host MAC address, any case
//   - start, end: Query window; end must be after start
//
// Returns:
//   - []PresencePoint: Points in time order
//   - error: ErrNotConnected, ErrInvalidRange, or the query error
func (c *Client) PresenceHistory(ctx context.Context, routerID, mac string, start, end time.Time) ([]PresencePoint, error) {
	if c == nil || !c.IsConnected() {
		return nil, ErrNotConnected
	}
	if !end.After(start) || end.Sub(start) > MaxHistoryRange {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	query := presenceHistoryQuery(c.cfg.Bucket, routerID, strings.ToUpper(mac), start, end)
	result, err := c.client.QueryAPI(c.cfg.Org).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying presence history: %w", err)
	}
	defer result.Close()

	var points []PresencePoint
	for result.Next() {
		rec := result.Record()
		p := PresencePoint{
			RouterID: stringValue(rec.ValueByKey("router")),
			MAC:      stringValue(rec.ValueByKey("mac")),
			Hostname: stringValue(rec.ValueByKey("hostname")),
			IP:       stringValue(rec.ValueByKey("ip")),
			Time:     rec.Time(),
		}
		p.Connected, _ = rec.ValueByKey("connected").(bool)  //nolint:errcheck // false when absent
		p.WANAccess, _ = rec.ValueByKey("wan_access").(bool) //nolint:errcheck // false when absent
		if secs, ok := rec.ValueByKey("last_activity").(int64); ok {
			p.LastActivity = time.Unix(secs, 0).UTC()
		}
		points = append(points, p)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("reading presence history: %w", err)
	}

	return points, nil
}

// presenceHistoryQuery builds the Flux query for one host's presence points
// with fields pivoted into columns.
func presenceHistoryQuery(bucket, routerID, mac string, start, end time.Time) string {
	return fmt.Sprintf(`from(bucket: "%s")
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == "%s" and r.router == "%s" and r.mac == "%s")
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"])`,
		fluxString(bucket),
		start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano),
		MeasurementPresence, fluxString(routerID), fluxString(mac),
	)
}

// fluxEscaper escapes the characters that are special inside a Flux string
// literal, including the "${" interpolation opener.
var fluxEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`)

func fluxString(s string) string {
	return fluxEscaper.Replace(s)
}

func stringValue(v any) string {
	s, _ := v.(string) //nolint:errcheck // empty when absent
	return s
}
