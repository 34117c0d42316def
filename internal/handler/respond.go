package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

const maxBodySize = 64 << 10

// writeOK writes {success:true,message,data}. data may be nil.
func writeOK(w http.ResponseWriter, message string, data func(e *jx.Encoder)) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	if message != "" {
		e.FieldStart("message")
		e.Str(message)
	}
	if data != nil {
		e.FieldStart("data")
		e.ObjStart()
		data(&e)
		e.ObjEnd()
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

// writeError writes {success:false,error,message}.
func writeError(w http.ResponseWriter, status int, errText, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(false)
	e.FieldStart("error")
	e.Str(errText)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// field writes a string field.
func field(e *jx.Encoder, name, value string) {
	e.FieldStart(name)
	e.Str(value)
}

// decimalField writes a decimal as a JSON number.
func decimalField(e *jx.Encoder, name string, v decimal.Decimal) {
	e.FieldStart(name)
	e.RawStr(v.String())
}

// readBody returns the request body, bounded.
func readBody(r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return b, nil
}

// decodeFields decodes a flat JSON object, calling fn for every key.
func decodeFields(body []byte, fn func(d *jx.Decoder, key string) error) error {
	if len(body) == 0 {
		return errors.New("empty body")
	}
	return jx.DecodeBytes(body).Obj(fn)
}

// readString reads a string, accepting numbers and null as well.
func readString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", d.Skip()
	}
}

// readDecimal reads a number or numeric string. Empty and null read as zero.
func readDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := readString(d)
	if err != nil || s == "" {
		return decimal.Zero, err
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse amount %q", s)
	}
	return v, nil
}
