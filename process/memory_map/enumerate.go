package memory_map

import (
	"errors"
	"fmt"
)

// ErrQueryFailed is wrapped by Enumerate when the query primitive fails. The
// querier's own error stays in the chain: providers wrap the process error
// kinds (ErrPlatform, ErrNotFound, ErrAccessDenied, ErrInvalidHandle), so
// errors.Is sees those through Enumerate. An error wrapping none of them is
// reported as a platform error by process.KindOf.
var ErrQueryFailed = errors.New("region query failed")

// Enumerate walks the whole address space from address 0, advancing by each
// region's size until the querier reports no further region. Base addresses
// are strictly increasing and each region starts where the previous ended.
// A zero-sized region or an advance that wraps around stops the walk.
func Enumerate(q Querier) ([]Region, error) {
	if refresher, ok := q.(Refresher); ok {
		if err := refresher.Refresh(); err != nil {
			return nil, fmt.Errorf("%w: refresh: %w", ErrQueryFailed, err)
		}
	}

	var regions []Region
	for addr := uint64(0); ; {
		region, ok, err := q.QueryRegion(addr)
		if err != nil {
			return regions, fmt.Errorf("%w at 0x%x: %w", ErrQueryFailed, addr, err)
		}
		if !ok {
			break
		}

		if region.Size == 0 {
			break
		}

		regions = append(regions, region)

		next := region.Base + region.Size
		if next <= addr {
			break
		}
		addr = next
	}

	return regions, nil
}
