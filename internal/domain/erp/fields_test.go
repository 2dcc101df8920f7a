package erp

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSaleOrderDecodesFalseOrTupleFields(t *testing.T) {
	raw := `{
		"id": 42,
		"name": "S00042",
		"partner_id": [7, "Acme Corp"],
		"date_order": "2024-02-01 09:30:00",
		"amount_total": 150.5,
		"state": "sale",
		"user_id": false,
		"order_line": [101, 102]
	}`
	var o SaleOrder
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if !o.PartnerID.Valid || o.PartnerID.ID != 7 || o.PartnerID.Name != "Acme Corp" {
		t.Errorf("unexpected partner: %+v", o.PartnerID)
	}
	if o.UserID.Valid || o.UserID.ID != 0 {
		t.Errorf("expected unset salesperson, got %+v", o.UserID)
	}
	want := time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
	if !o.DateOrder.Valid || !o.DateOrder.Time.Equal(want) {
		t.Errorf("unexpected date: %+v", o.DateOrder)
	}
	if o.AmountTotal.String() != "150.5" {
		t.Errorf("unexpected amount: %s", o.AmountTotal)
	}
	if len(o.OrderLine) != 2 {
		t.Errorf("expected 2 line ids, got %v", o.OrderLine)
	}
}

func TestPartnerTextFalse(t *testing.T) {
	var p Partner
	if err := json.Unmarshal([]byte(`{"id":1,"name":"Jane","email":false,"phone":"","city":"Lyon"}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Email.Valid || p.Email.String != "" {
		t.Errorf("false email should be unset: %+v", p.Email)
	}
	if p.Phone.Valid {
		t.Errorf("empty phone should be unset: %+v", p.Phone)
	}
	if !p.City.Valid || p.City.String != "Lyon" {
		t.Errorf("unexpected city: %+v", p.City)
	}
}

func TestDateTimeAcceptsDateOnly(t *testing.T) {
	var d DateTime
	if err := json.Unmarshal([]byte(`"2024-01-01"`), &d); err != nil {
		t.Fatal(err)
	}
	if !d.Valid || d.Time.Day() != 1 || d.Time.Month() != time.January {
		t.Errorf("unexpected date %+v", d)
	}
	if err := json.Unmarshal([]byte(`"yesterday"`), &d); err == nil {
		t.Error("expected an error for an unparseable date")
	}
}

func TestMany2OneRoundTrip(t *testing.T) {
	in := Many2One{ID: 3, Name: "Chairs", Valid: true}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `[3,"Chairs"]` {
		t.Errorf("unexpected encoding %s", b)
	}
	b, _ = json.Marshal(Many2One{})
	if string(b) != "false" {
		t.Errorf("unset relation should encode as false, got %s", b)
	}
}

func TestParseProductCode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"[DESK-01] Office desk", "DESK-01"},
		{"  [ A7 ] Chair", "A7"},
		{"Office desk", ""},
		{"Desk [X1]", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParseProductCode(tt.in); got != tt.want {
			t.Errorf("ParseProductCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
