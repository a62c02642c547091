package service

import (
	"sort"
	"time"

	"github.com/mailru/easyjson/jwriter"
)

// View is the read-side projection of a Record served to API clients.
type View struct {
	Name      string
	Address   string
	External  bool
	Backend   string
	TrustCert bool
	Kind      Kind
	Live      string
	Up        bool
	UpSince   time.Time
	ErrorText string
}

// Views is a JSON array of View.
type Views []View

func (r Record) View() View {
	v := View{
		Name:      r.Name,
		Address:   r.Target(),
		External:  r.External,
		Backend:   r.Backend,
		TrustCert: r.TrustCert,
		Kind:      r.Kind,
		Live:      r.Live(),
		Up:        r.IsUp(),
		ErrorText: r.ErrorText,
	}
	if v.Up {
		v.UpSince = r.CheckTime
	}
	return v
}

// SortedViews projects records sorted up first, then by name.
func SortedViews(records []Record) Views {
	views := make(Views, len(records))
	for i, r := range records {
		views[i] = r.View()
	}

	sort.SliceStable(views, func(i, j int) bool {
		if views[i].Up != views[j].Up {
			return views[i].Up
		}
		return views[i].Name < views[j].Name
	})

	return views
}

// MarshalEasyJSON writes v as a JSON object.
func (v View) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"name":`)
	w.String(v.Name)
	w.RawString(`,"address":`)
	w.String(v.Address)
	w.RawString(`,"external":`)
	w.Bool(v.External)
	if v.Backend != "" {
		w.RawString(`,"backend":`)
		w.String(v.Backend)
	}
	w.RawString(`,"trustCertificate":`)
	w.Bool(v.TrustCert)
	w.RawString(`,"checkType":`)
	w.String(v.Kind.String())
	w.RawString(`,"live":`)
	w.String(v.Live)
	w.RawString(`,"up":`)
	w.Bool(v.Up)
	w.RawString(`,"upSince":`)
	if v.Up {
		w.String(v.UpSince.UTC().Format(time.RFC3339))
	} else {
		w.RawString("null")
	}
	if v.ErrorText != "" {
		w.RawString(`,"errorText":`)
		w.String(v.ErrorText)
	}
	w.RawByte('}')
}

// MarshalJSON lets View satisfy json.Marshaler as well.
func (v View) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	v.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

// MarshalEasyJSON writes vs as a JSON array. A nil slice is written as [].
func (vs Views) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('[')
	for i, v := range vs {
		if i > 0 {
			w.RawByte(',')
		}
		v.MarshalEasyJSON(w)
	}
	w.RawByte(']')
}

func (vs Views) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	vs.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}
