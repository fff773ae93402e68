package option

import (
	"sort"

	"github.com/insomniacslk/dhcp/dhcpv4"
)

// Store holds the configured option values of a network. Options are
// keyed by their numeric code so codes decoded from a request match
// the ones configured
type Store struct {
	values map[uint8]dhcpv4.Option
}

// NewStore returns an empty option store
func NewStore() *Store {
	return &Store{
		values: make(map[uint8]dhcpv4.Option),
	}
}

// Set stores value for code replacing any previous value
func (s *Store) Set(code dhcpv4.OptionCode, value dhcpv4.OptionValue) {
	s.values[code.Code()] = dhcpv4.Option{Code: code, Value: value}
}

// SetDefault stores value only if code is not yet configured
func (s *Store) SetDefault(code dhcpv4.OptionCode, value dhcpv4.OptionValue) {
	if !s.Has(code) {
		s.Set(code, value)
	}
}

// Has reports whether a value is stored for code
func (s *Store) Has(code dhcpv4.OptionCode) bool {
	_, ok := s.values[code.Code()]
	return ok
}

// Get returns the option stored for code
func (s *Store) Get(code dhcpv4.OptionCode) (dhcpv4.Option, bool) {
	opt, ok := s.values[code.Code()]
	return opt, ok
}

// Len returns the number of stored options
func (s *Store) Len() int {
	return len(s.values)
}

// Options returns all stored options ordered by code
func (s *Store) Options() []dhcpv4.Option {
	opts := make([]dhcpv4.Option, 0, len(s.values))
	for _, o := range s.values {
		opts = append(opts, o)
	}

	sort.Slice(opts, func(i, j int) bool {
		return opts[i].Code.Code() < opts[j].Code.Code()
	})

	return opts
}
