package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InclusionState - входит ли парковка/кладовая в цену
type InclusionState string

const (
	InclusionIncluded              InclusionState = "included"
	InclusionExcluded              InclusionState = "excluded"
	InclusionUnconfirmed           InclusionState = "unconfirmed"
	InclusionExcludedWithSurcharge InclusionState = "excluded_with_surcharge"
)

func (s InclusionState) Valid() bool {
	switch s {
	case InclusionIncluded, InclusionExcluded, InclusionUnconfirmed, InclusionExcludedWithSurcharge:
		return true
	}
	return false
}

func ParseInclusionState(s string) (InclusionState, error) {
	st := InclusionState(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownInclusionState, s)
	}
	return st, nil
}

// Inclusion - состояние + доплата. Доплата есть только у excluded_with_surcharge.
type Inclusion struct {
	State     InclusionState   `json:"state"`
	Surcharge *decimal.Decimal `json:"surcharge,omitempty"`
}

// NewInclusion отбрасывает доплату для состояний без доплаты
func NewInclusion(state InclusionState, surcharge *decimal.Decimal) Inclusion {
	if state == "" {
		state = InclusionUnconfirmed
	}
	inc := Inclusion{State: state}
	if state == InclusionExcludedWithSurcharge && surcharge != nil {
		s := *surcharge
		inc.Surcharge = &s
	}
	return inc
}

// Normalized применяет правила NewInclusion к уже собранному значению
func (i Inclusion) Normalized() Inclusion {
	return NewInclusion(i.State, i.Surcharge)
}

func (i Inclusion) clone() Inclusion {
	out := Inclusion{State: i.State}
	if i.Surcharge != nil {
		s := *i.Surcharge
		out.Surcharge = &s
	}
	return out
}
