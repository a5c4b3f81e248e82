// Package sites lists the retail stores an analysis can be centered on.
package sites

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/catchment/internal/catchment"
	"github.com/sells-group/catchment/internal/spatial"
)

// Store layer fields.
const (
	FieldStoreNo = "StoreNo"
	FieldState   = "State"
)

// Fields are requested from the store layer.
var Fields = []string{FieldStoreNo, FieldState}

// ErrNotFound is returned by Find for an unknown store number.
var ErrNotFound = eris.New("sites: store not found")

// Store is one retail location.
type Store struct {
	StoreNo  string           `json:"store_no" yaml:"store_no"`
	State    string           `json:"state" yaml:"state"`
	Location catchment.Center `json:"location" yaml:"location"`
}

// Catalog holds the store list. It is loaded once and read-only afterwards.
type Catalog struct {
	layer spatial.Querier
	group singleflight.Group

	mu     sync.RWMutex
	stores []Store
	loaded bool
}

// NewCatalog creates a catalog over the store point layer.
func NewCatalog(layer spatial.Querier) *Catalog {
	return &Catalog{layer: layer}
}

// NewStaticCatalog creates a loaded catalog from a fixed list.
func NewStaticCatalog(stores []Store) *Catalog {
	c := &Catalog{stores: append([]Store(nil), stores...), loaded: true}
	sortStores(c.stores)
	return c
}

// loadTimeout bounds the shared store query, which outlives any one caller.
const loadTimeout = 2 * time.Minute

// Load queries the store layer. Later calls return immediately once a load
// succeeded; concurrent callers share one query. Canceling ctx abandons the
// wait but not the shared query.
func (c *Catalog) Load(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	if c.layer == nil {
		return eris.New("sites: no store layer configured")
	}

	ch := c.group.DoChan("load", func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		features, err := c.layer.Query(lctx, spatial.Query{
			Relation:  spatial.RelIntersects,
			OutFields: Fields,
		})
		if err != nil {
			return nil, eris.Wrap(err, "sites: query stores")
		}

		stores, skipped := decodeStores(features)
		if skipped > 0 {
			zap.L().Warn("sites: stores without number or location", zap.Int("skipped", skipped))
		}
		sortStores(stores)

		c.mu.Lock()
		c.stores = stores
		c.loaded = true
		c.mu.Unlock()
		zap.L().Info("sites: catalog loaded", zap.Int("stores", len(stores)))
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "sites: wait for store load")
	case r := <-ch:
		return r.Err
	}
}

func decodeStores(features []spatial.Feature) ([]Store, int) {
	stores := make([]Store, 0, len(features))
	skipped := 0
	for _, f := range features {
		no := f.Attributes.String(FieldStoreNo)
		pt, ok := spatial.RepresentativePoint(f)
		if no == "" || !ok {
			skipped++
			continue
		}
		stores = append(stores, Store{
			StoreNo:  no,
			State:    f.Attributes.String(FieldState),
			Location: catchment.Center{Lng: pt.X(), Lat: pt.Y()},
		})
	}
	return stores, skipped
}

// sortStores orders by numeric store number; non-numeric numbers sort last.
func sortStores(stores []Store) {
	sort.SliceStable(stores, func(i, j int) bool {
		a, aErr := strconv.Atoi(stores[i].StoreNo)
		b, bErr := strconv.Atoi(stores[j].StoreNo)
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		default:
			return stores[i].StoreNo < stores[j].StoreNo
		}
	})
}

// States returns the distinct non-empty states, sorted.
func (c *Catalog) States() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, s := range c.stores {
		if s.State == "" || seen[s.State] {
			continue
		}
		seen[s.State] = true
		out = append(out, s.State)
	}
	sort.Strings(out)
	return out
}

// List returns the stores in state, or every store when state is empty.
// The match ignores case.
func (c *Catalog) List(state string) []Store {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Store, 0, len(c.stores))
	for _, s := range c.stores {
		if state == "" || strings.EqualFold(s.State, state) {
			out = append(out, s)
		}
	}
	return out
}

// Find returns the store with the given number.
func (c *Catalog) Find(storeNo string) (Store, error) {
	storeNo = strings.TrimSpace(storeNo)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.stores {
		if s.StoreNo == storeNo {
			return s, nil
		}
	}
	return Store{}, eris.Wrapf(ErrNotFound, "sites: store %q", storeNo)
}
