package formatter

import (
	"io"
	"time"

	"github.com/bytedance/sonic"
)

type jsonItem struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Icon          string    `json:"icon"`
	IconColor     string    `json:"icon_color,omitempty"`
	EntityPicture string    `json:"entity_picture,omitempty"`
	State         string    `json:"state"`
	RawState      string    `json:"raw_state"`
	Time          time.Time `json:"time"`
	When          string    `json:"when"`
}

// JSONFormatter writes every item, ignoring overflow.
type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) Format(w io.Writer, v View) error {
	out := make([]jsonItem, 0, len(v.Items))
	for _, it := range v.Items {
		out = append(out, jsonItem{
			ID:            it.ID,
			Name:          it.Name,
			Icon:          it.Icon,
			IconColor:     it.IconColor,
			EntityPicture: it.EntityPicture,
			State:         it.State,
			RawState:      it.RawState,
			Time:          it.Time,
			When:          v.TimeLabel(it),
		})
	}

	data, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
