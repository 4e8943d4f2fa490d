// Package meterclient is a client for a smart meter metering REST API.
//
// # Architecture
//
// The client is structured into several key packages:
//   - auth: OAuth client-credentials token cache with bounded refresh retries
//   - api: request executor with backoff, endpoint wrappers and the sync job
//   - daterange: default and validate caller-supplied date bounds
//   - paginate: split long ranges into chunks and merge the results
//   - transport: HTTP exchange, rate limiting and a cache for closed windows
//   - database: TimescaleDB storage for fetched samples
//   - server: HTTP read API over the stored samples
//   - scheduler: periodic sync of recent days
//
// Key Features
//
//   - Token handling:
//     A bearer token is reused until shortly before it expires and is
//     refreshed once for all concurrent callers.
//
//   - Retries:
//     Every failed call is retried with exponential backoff. A 401 drops
//     the cached token so the next attempt authenticates again.
//
//   - Long ranges:
//     Ranges are fetched newest first in overlapping chunks. Samples are
//     merged by measurement window and the walk stops early once data runs
//     out.
//
// Example Usage
//
//	res, err := client.DailyValues(ctx, meterID, "2024-01-01", "", api.WithChunkDays(90))
//	if err != nil {
//	    return err
//	}
//	if res.Empty() {
//	    // no data for the range
//	}
//
// For more information about specific packages, see their respective
// documentation.
package meterclient
