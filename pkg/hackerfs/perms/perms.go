// Package perms models Unix-style permission bits: the nine standard
// read/write/execute bits plus setuid, setgid and sticky, with lossless
// conversion to and from octal and symbolic (ls -l style) forms.
package perms

import (
	"fmt"

	"github.com/hackeros/hackerfs/pkg/hackerfs/core"
)

// Permissions holds the twelve Unix permission bits for a single node.
type Permissions struct {
	OwnerRead    bool
	OwnerWrite   bool
	OwnerExecute bool
	GroupRead    bool
	GroupWrite   bool
	GroupExecute bool
	OtherRead    bool
	OtherWrite   bool
	OtherExecute bool
	SetUID       bool
	SetGID       bool
	Sticky       bool
}

// FromOctal decodes an octal mode value in the range 0-07777. The
// thousands digit carries the special bits (4=setuid, 2=setgid,
// 1=sticky); the remaining digits are the owner/group/other triples.
// Values outside the range return core.ErrInvalidFormat.
func FromOctal(v int) (Permissions, error) {
	if v < 0 || v > 0o7777 {
		return Permissions{}, fmt.Errorf("octal mode %o out of range: %w", v, core.ErrInvalidFormat)
	}
	special := (v >> 9) & 0o7
	owner := (v >> 6) & 0o7
	group := (v >> 3) & 0o7
	other := v & 0o7
	return Permissions{
		OwnerRead:    owner&4 != 0,
		OwnerWrite:   owner&2 != 0,
		OwnerExecute: owner&1 != 0,
		GroupRead:    group&4 != 0,
		GroupWrite:   group&2 != 0,
		GroupExecute: group&1 != 0,
		OtherRead:    other&4 != 0,
		OtherWrite:   other&2 != 0,
		OtherExecute: other&1 != 0,
		SetUID:       special&4 != 0,
		SetGID:       special&2 != 0,
		Sticky:       special&1 != 0,
	}, nil
}

// MustFromOctal is FromOctal for trusted literal values; it panics on an
// out-of-range mode.
func MustFromOctal(v int) Permissions {
	p, err := FromOctal(v)
	if err != nil {
		panic(err)
	}
	return p
}

// ToOctal encodes the permissions as a canonical octal value in 0-07777.
func (p Permissions) ToOctal() int {
	v := 0
	if p.SetUID {
		v |= 0o4000
	}
	if p.SetGID {
		v |= 0o2000
	}
	if p.Sticky {
		v |= 0o1000
	}
	if p.OwnerRead {
		v |= 0o400
	}
	if p.OwnerWrite {
		v |= 0o200
	}
	if p.OwnerExecute {
		v |= 0o100
	}
	if p.GroupRead {
		v |= 0o040
	}
	if p.GroupWrite {
		v |= 0o020
	}
	if p.GroupExecute {
		v |= 0o010
	}
	if p.OtherRead {
		v |= 0o004
	}
	if p.OtherWrite {
		v |= 0o002
	}
	if p.OtherExecute {
		v |= 0o001
	}
	return v
}

// Parse decodes a plain 9-character symbolic string such as "rwxr-xr-x".
// Special-bit glyphs are rejected; use ParseDetailed for those.
func Parse(s string) (Permissions, error) {
	var p Permissions
	if err := p.SetFromString(s); err != nil {
		return Permissions{}, err
	}
	return p, nil
}

// ParseDetailed decodes a 9-character symbolic string that may carry
// setuid/setgid/sticky glyphs (s, S, t, T) in the execute positions,
// matching ls -l rendering.
func ParseDetailed(s string) (Permissions, error) {
	var p Permissions
	if err := p.SetFromDetailedString(s); err != nil {
		return Permissions{}, err
	}
	return p, nil
}

// SetFromString replaces the nine standard bits from a plain symbolic
// string. Special bits are cleared.
func (p *Permissions) SetFromString(s string) error {
	if len(s) != 9 {
		return fmt.Errorf("symbolic mode %q must be 9 characters: %w", s, core.ErrInvalidFormat)
	}
	parsed := Permissions{}
	flags := []*bool{
		&parsed.OwnerRead, &parsed.OwnerWrite, &parsed.OwnerExecute,
		&parsed.GroupRead, &parsed.GroupWrite, &parsed.GroupExecute,
		&parsed.OtherRead, &parsed.OtherWrite, &parsed.OtherExecute,
	}
	for i := 0; i < 9; i++ {
		want := byte("rwx"[i%3])
		switch s[i] {
		case want:
			*flags[i] = true
		case '-':
		default:
			return fmt.Errorf("symbolic mode %q: unexpected %q at position %d: %w", s, s[i], i, core.ErrInvalidFormat)
		}
	}
	*p = parsed
	return nil
}

// SetFromDetailedString replaces all twelve bits from a symbolic string
// that may include special-bit glyphs in the execute positions.
func (p *Permissions) SetFromDetailedString(s string) error {
	if len(s) != 9 {
		return fmt.Errorf("symbolic mode %q must be 9 characters: %w", s, core.ErrInvalidFormat)
	}
	parsed := Permissions{}
	reads := []*bool{&parsed.OwnerRead, &parsed.GroupRead, &parsed.OtherRead}
	writes := []*bool{&parsed.OwnerWrite, &parsed.GroupWrite, &parsed.OtherWrite}
	execs := []*bool{&parsed.OwnerExecute, &parsed.GroupExecute, &parsed.OtherExecute}
	specials := []*bool{&parsed.SetUID, &parsed.SetGID, &parsed.Sticky}
	specialGlyph := []byte{'s', 's', 't'}

	for class := 0; class < 3; class++ {
		base := class * 3
		switch s[base] {
		case 'r':
			*reads[class] = true
		case '-':
		default:
			return fmt.Errorf("symbolic mode %q: unexpected %q at position %d: %w", s, s[base], base, core.ErrInvalidFormat)
		}
		switch s[base+1] {
		case 'w':
			*writes[class] = true
		case '-':
		default:
			return fmt.Errorf("symbolic mode %q: unexpected %q at position %d: %w", s, s[base+1], base+1, core.ErrInvalidFormat)
		}
		lower := specialGlyph[class]
		upper := lower - 'a' + 'A'
		switch s[base+2] {
		case 'x':
			*execs[class] = true
		case lower:
			*execs[class] = true
			*specials[class] = true
		case upper:
			*specials[class] = true
		case '-':
		default:
			return fmt.Errorf("symbolic mode %q: unexpected %q at position %d: %w", s, s[base+2], base+2, core.ErrInvalidFormat)
		}
	}
	*p = parsed
	return nil
}

// String renders the nine standard bits as "rwxr-xr-x". Special bits are
// not rendered; use Detailed for ls -l fidelity.
func (p Permissions) String() string {
	buf := make([]byte, 9)
	bits := []bool{
		p.OwnerRead, p.OwnerWrite, p.OwnerExecute,
		p.GroupRead, p.GroupWrite, p.GroupExecute,
		p.OtherRead, p.OtherWrite, p.OtherExecute,
	}
	for i, set := range bits {
		if set {
			buf[i] = "rwx"[i%3]
		} else {
			buf[i] = '-'
		}
	}
	return string(buf)
}

// Detailed renders all twelve bits, using lower-case s/t when the
// corresponding execute bit is also set and upper-case S/T when only the
// special bit is set.
func (p Permissions) Detailed() string {
	buf := []byte(p.String())
	buf[2] = specialRune(buf[2] == 'x', p.SetUID, 's')
	buf[5] = specialRune(buf[5] == 'x', p.SetGID, 's')
	buf[8] = specialRune(buf[8] == 'x', p.Sticky, 't')
	return string(buf)
}

func specialRune(exec, special bool, lower byte) byte {
	switch {
	case special && exec:
		return lower
	case special:
		return lower - 'a' + 'A'
	case exec:
		return 'x'
	default:
		return '-'
	}
}

// Equal reports whether the nine standard bits match. Special bits are
// deliberately excluded; compare with == when setuid/setgid/sticky
// matter.
func (p Permissions) Equal(q Permissions) bool {
	p.SetUID, p.SetGID, p.Sticky = false, false, false
	q.SetUID, q.SetGID, q.Sticky = false, false, false
	return p == q
}
