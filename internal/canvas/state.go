package canvas

import (
	"github.com/loomline/designvault/pkg/enums"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
)

// ObjectState describes the design object for clients.
type ObjectState struct {
	DesignNo string `json:"design_no"`
	Position Point  `json:"position"`
	Scale    Scale  `json:"scale"`
	Natural  Size   `json:"natural"`
	Size     Size   `json:"size"`
}

// State is a serialisable snapshot of a surface.
type State struct {
	Width      float64        `json:"width"`
	Height     float64        `json:"height"`
	ViewMode   enums.ViewMode `json:"view_mode"`
	Mode       Mode           `json:"mode"`
	Color      string         `json:"color"`
	Object     *ObjectState   `json:"object,omitempty"`
	Worksheet  string         `json:"worksheet,omitempty"`
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	Frames     uint64         `json:"frames"`
	Error      string         `json:"error,omitempty"`
	Unmounted  bool           `json:"unmounted,omitempty"`
}

// State snapshots the surface.
func (s *Surface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Width:     s.size.Width,
		Height:    s.size.Height,
		ViewMode:  s.opts.ViewMode,
		Mode:      s.background.Mode(),
		Color:     FormatColor(s.color),
		Worksheet: s.docDesign,
		Page:      s.page,
		Frames:    s.frames,
		Unmounted: s.unmounted,
	}
	if s.doc != nil {
		st.TotalPages = s.doc.NumPages()
	}
	if s.object != nil {
		st.Object = &ObjectState{
			DesignNo: s.object.DesignNo,
			Position: s.object.Position,
			Scale:    s.object.Scale,
			Natural:  s.object.Natural,
			Size:     s.object.ScaledSize(),
		}
	}
	if s.err != nil {
		st.Error = s.err.Error()
		if typed := pkgerrors.As(s.err); typed != nil {
			st.Error = typed.Message()
		}
	}
	return st
}
