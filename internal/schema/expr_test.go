package schema

import (
	"reflect"
	"testing"
)

func TestExprReferences(t *testing.T) {
	columns := []string{"mail", "cost", "Name"}
	tests := []struct {
		expr string
		want []string
	}{
		{`lower("mail")`, []string{"mail"}},
		{`cost >= 0 AND name <> 'cost'`, []string{"cost", "Name"}},
		{"`mail` COLLATE NOCASE", []string{"mail"}},
		{`t.mail IS NOT NULL`, []string{"mail"}},
		{`length(x) > 3`, nil},
		{`mail = mail`, []string{"mail"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			if got := ExprReferences(tt.expr, columns); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExprReferences(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestRenameInExpr(t *testing.T) {
	quote := func(s string) string { return `"` + s + `"` }
	renames := map[string]string{"mail": "email"}
	tests := []struct {
		expr string
		want string
	}{
		{`lower(mail)`, `lower("email")`},
		{`"mail" <> 'mail'`, `"email" <> 'mail'`},
		{`MAIL IS NOT NULL AND cost > 0`, `"email" IS NOT NULL AND cost > 0`},
		{`mail(cost)`, `mail(cost)`},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			if got := RenameInExpr(tt.expr, renames, quote); got != tt.want {
				t.Errorf("RenameInExpr(%q) = %q, want %q", tt.expr, got, tt.want)
			}
		})
	}
	if got := RenameInExpr("mail", nil, quote); got != "mail" {
		t.Errorf("no renames = %q", got)
	}
}

func TestNormalizeExpr(t *testing.T) {
	if a, b := NormalizeExpr(`Cost >= 0`), NormalizeExpr(`cost>=0`); a != b {
		t.Errorf("%q != %q", a, b)
	}
	if a, b := NormalizeExpr(`x = 'A B'`), NormalizeExpr(`x = 'a b'`); a == b {
		t.Errorf("literals must keep case and spacing: %q", a)
	}
}
