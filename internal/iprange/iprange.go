// Package iprange parses and encodes last-octet IPv4 ranges such as
// "10.0.81.0-255".
package iprange

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// Validation errors returned by Parse and Decode.
var (
	// ErrMalformedAddress indicates an input is not a dotted IPv4 address.
	ErrMalformedAddress = errors.New("malformed IPv4 address")

	// ErrSubnetMismatch indicates the first three octets differ.
	ErrSubnetMismatch = errors.New("range must stay within one subnet (first 3 octets must match)")

	// ErrOrdering indicates the start address is after the end address.
	ErrOrdering = errors.New("start address must be less than or equal to end address")
)

// Range is a contiguous slice of addresses sharing the first three octets.
type Range struct {
	Prefix [3]byte
	Start  uint8
	End    uint8
}

// Parse validates a start/end address pair and returns the canonical range.
// Example: Parse("10.0.81.0", "10.0.81.255") covers 256 addresses.
func Parse(startAddr, endAddr string) (Range, error) {
	start, err := parseAddr(startAddr)
	if err != nil {
		return Range{}, err
	}
	end, err := parseAddr(endAddr)
	if err != nil {
		return Range{}, err
	}

	if start[0] != end[0] || start[1] != end[1] || start[2] != end[2] {
		return Range{}, fmt.Errorf("%w: %s and %s", ErrSubnetMismatch, startAddr, endAddr)
	}

	if start[3] > end[3] {
		return Range{}, fmt.Errorf("%w: %s > %s", ErrOrdering, startAddr, endAddr)
	}

	return Range{
		Prefix: [3]byte{start[0], start[1], start[2]},
		Start:  start[3],
		End:    end[3],
	}, nil
}

// Decode parses the canonical "a.b.c.S-E" encoding produced by String.
func Decode(encoded string) (Range, error) {
	dash := strings.LastIndexByte(encoded, '-')
	if dash < 0 {
		return Range{}, fmt.Errorf("%w: %q has no '-'", ErrMalformedAddress, encoded)
	}

	startAddr := encoded[:dash]
	dot := strings.LastIndexByte(startAddr, '.')
	if dot < 0 {
		return Range{}, fmt.Errorf("%w: %q", ErrMalformedAddress, encoded)
	}

	return Parse(startAddr, startAddr[:dot+1]+encoded[dash+1:])
}

// AddressCount returns the number of addresses in an encoded range, or 0
// when the encoding cannot be decoded.
func AddressCount(encoded string) int {
	r, err := Decode(encoded)
	if err != nil {
		return 0
	}
	return r.Count()
}

// Count returns end - start + 1.
func (r Range) Count() int {
	return int(r.End) - int(r.Start) + 1
}

// String returns the canonical encoding, e.g. "192.168.1.1-254".
func (r Range) String() string {
	return fmt.Sprintf("%d.%d.%d.%d-%d", r.Prefix[0], r.Prefix[1], r.Prefix[2], r.Start, r.End)
}

// Bounds returns the first and last address of the range.
func (r Range) Bounds() (string, string) {
	return r.addr(r.Start), r.addr(r.End)
}

// Addresses enumerates every address in the range in ascending order.
func (r Range) Addresses() []string {
	addrs := make([]string, 0, r.Count())
	for i := int(r.Start); i <= int(r.End); i++ {
		addrs = append(addrs, r.addr(uint8(i)))
	}
	return addrs
}

// Contains reports whether addr falls inside the range.
func (r Range) Contains(addr string) bool {
	ip, err := parseAddr(addr)
	if err != nil {
		return false
	}
	return ip[0] == r.Prefix[0] && ip[1] == r.Prefix[1] && ip[2] == r.Prefix[2] &&
		ip[3] >= r.Start && ip[3] <= r.End
}

func (r Range) addr(last uint8) string {
	return strconv.Itoa(int(r.Prefix[0])) + "." +
		strconv.Itoa(int(r.Prefix[1])) + "." +
		strconv.Itoa(int(r.Prefix[2])) + "." +
		strconv.Itoa(int(last))
}

func parseAddr(s string) ([4]byte, error) {
	ip, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil || !ip.Is4() {
		return [4]byte{}, fmt.Errorf("%w: %q", ErrMalformedAddress, s)
	}
	return ip.As4(), nil
}
