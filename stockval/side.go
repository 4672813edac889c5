// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package stockval

import (
	"fmt"
	"strings"
)

type Side int

const (
	SideCall Side = iota
	SidePut
)

func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL":
		return SideCall, nil
	case "PUT":
		return SidePut, nil
	default:
		return SideCall, fmt.Errorf("%w: side must be CALL or PUT, got %q", ErrDomain, s)
	}
}

func (s Side) String() string {
	if s == SidePut {
		return "PUT"
	}
	return "CALL"
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	v, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Intrinsic returns the immediate exercise value for spot s and strike k.
func (s Side) Intrinsic(spot, strike float64) float64 {
	if s == SidePut {
		return max(strike-spot, 0)
	}
	return max(spot-strike, 0)
}
