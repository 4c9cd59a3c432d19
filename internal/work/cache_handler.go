package work

// CacheHandler decides whether a unit's result may be loaded from or stored
// to the build cache.
type CacheHandler interface {
	// CanLoad reports load eligibility, with a reason when not eligible.
	CanLoad() (bool, string)
	// CanStore reports store eligibility, with a reason when not eligible.
	CanStore() (bool, string)
}

// Cacheable allows both loads and stores.
type Cacheable struct{}

func (Cacheable) CanLoad() (bool, string)  { return true, "" }
func (Cacheable) CanStore() (bool, string) { return true, "" }

// NotCacheable opts a unit out of caching.
type NotCacheable struct {
	Reason string
}

func (n NotCacheable) CanLoad() (bool, string)  { return false, n.reason() }
func (n NotCacheable) CanStore() (bool, string) { return false, n.reason() }

func (n NotCacheable) reason() string {
	if n.Reason == "" {
		return "caching has not been enabled for the unit"
	}
	return n.Reason
}
