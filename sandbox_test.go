package policyengine

import (
	"strings"
	"testing"
)

func testEnv() *Env {
	return &Env{
		User: &User{ID: "u-100", Attrs: Attributes{
			"department":      "Sales",
			"job_title":       "Sales Representative",
			"country":         "DE",
			"employment_type": "fulltime",
			"clearance":       int64(3),
			"contractor":      false,
		}},
		Resource: &Resource{App: "salesforce", Permission: "standard"},
		Ctx:      Context{"hour": int64(10)},
	}
}

func TestEvaluateBasicComparisons(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{`user.department == "Sales"`, true},
		{`user.department == "Finance"`, false},
		{`user.department != "Finance"`, true},
		{`user.clearance >= 3`, true},
		{`user.clearance > 3`, false},
		{`user.contractor == false`, true},
		{`resource.app == "salesforce" and resource.permission == "standard"`, true},
		{`user.country == "DE" or user.country == "FR"`, true},
		{`not user.contractor`, true},
		{`user.id == "u-100"`, true},
	}
	env := testEnv()
	for _, c := range cases {
		got, err := Evaluate(c.expr, env)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.expr, err)
		}
		if got != c.want {
			t.Fatalf("%s: got %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestEvaluateChainedComparison(t *testing.T) {
	env := testEnv()
	cases := []struct {
		expr string
		hour int64
		want bool
	}{
		{`8 <= ctx.hour < 18`, 10, true},
		{`8 <= ctx.hour < 18`, 7, false},
		{`8 <= ctx.hour < 18`, 18, false},
		{`8 <= ctx.hour < 18`, 8, true},
		{`1 < 2 < 3 < 4`, 0, true},
		{`1 < 3 < 2`, 0, false},
	}
	for _, c := range cases {
		env.Ctx["hour"] = c.hour
		got, err := Evaluate(c.expr, env)
		if err != nil {
			t.Fatalf("%s (hour=%d): unexpected error: %v", c.expr, c.hour, err)
		}
		if got != c.want {
			t.Fatalf("%s (hour=%d): got %v, want %v", c.expr, c.hour, got, c.want)
		}
	}
}

func TestEvaluateInIsSubstring(t *testing.T) {
	env := testEnv()
	got, err := Evaluate(`"Sales" in user.job_title`, env)
	if err != nil || !got {
		t.Fatalf(`expected "Sales" in user.job_title to match, got %v err %v`, got, err)
	}
	got, err = Evaluate(`"Manager" in user.job_title`, env)
	if err != nil || got {
		t.Fatalf(`expected "Manager" in user.job_title not to match, got %v err %v`, got, err)
	}
}

func TestEvaluateLenAndArithmetic(t *testing.T) {
	env := testEnv()
	cases := []struct {
		expr string
		want bool
	}{
		{`len(user.country) == 2`, true},
		{`len("") == 0`, true},
		{`2 + 3 * 4 == 14`, true},
		{`(2 + 3) * 4 == 20`, true},
		{`10 / 3 == 3`, true},
		{`-ctx.hour == -10`, true},
		{`user.clearance + 1 > 3`, true},
	}
	for _, c := range cases {
		got, err := Evaluate(c.expr, env)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.expr, err)
		}
		if got != c.want {
			t.Fatalf("%s: got %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestEvaluateDivisionByZero(t *testing.T) {
	_, err := Evaluate(`1 / 0 == 1`, testEnv())
	if err == nil {
		t.Fatal("expected an error for division by zero")
	}
	if _, ok := err.(*EvalError); !ok {
		t.Fatalf("expected EvalError, got %T: %v", err, err)
	}
}

func TestEvaluateMissingAttribute(t *testing.T) {
	_, err := Evaluate(`user.no_such_attr == "x"`, testEnv())
	le, ok := err.(*LookupError)
	if !ok {
		t.Fatalf("expected LookupError, got %T: %v", err, err)
	}
	if le.Namespace != "user" || le.Field != "no_such_attr" {
		t.Fatalf("unexpected lookup error fields: %+v", le)
	}
}

func TestEvaluateTypeMismatch(t *testing.T) {
	for _, expr := range []string{
		`user.clearance == "3"`,
		`user.department < 5`,
		`"a" in 5`,
		`true < false`,
		`"x" + "y" == "xy"`,
		`not ctx.hour`,
		`len(ctx.hour) == 2`,
		`ctx.hour and true`,
	} {
		_, err := Evaluate(expr, testEnv())
		if err == nil {
			t.Fatalf("%s: expected an evaluation error", expr)
		}
		if _, ok := err.(*EvalError); !ok {
			t.Fatalf("%s: expected EvalError, got %T: %v", expr, err, err)
		}
	}
}

func TestEvaluateNonBooleanResult(t *testing.T) {
	_, err := Evaluate(`ctx.hour + 1`, testEnv())
	if err == nil {
		t.Fatal("expected an error for a non-boolean expression result")
	}
}

func TestCompileRejectsDisallowedConstructs(t *testing.T) {
	cases := []struct {
		expr string
		hint string
	}{
		{`user.department = "Sales"`, "assignment"},
		{`import os`, "unknown name"},
		{`os.system("rm -rf /")`, "unknown name"},
		{`__builtins__.eval("1")`, "unknown name"},
		{`open("/etc/passwd")`, "unknown name"},
		{`department == "Sales"`, "unknown name"},
		{`user["department"] == "Sales"`, "not part of the condition grammar"},
		{`user.attrs.department == "Sales"`, ""},
		{`exec("code")`, "unknown name"},
		{`len`, "len must be called"},
		{`user`, "must be followed by"},
		{`user.`, "expected an attribute name"},
		{`!user.contractor`, "'!' is not an operator"},
		{`user.department == "Sales" == `, "unexpected end"},
		{`(user.clearance > 1`, "expected ')'"},
		{`"unterminated`, "unterminated string"},
		{`ctx.hour % 2 == 0`, "not part of the condition grammar"},
		{`user.name; user.name`, "not part of the condition grammar"},
		{`lambda: true`, "not part of the condition grammar"},
		{`1 2`, "after end of expression"},
	}
	for _, c := range cases {
		_, err := CompileExpression(c.expr)
		if err == nil {
			t.Fatalf("%s: expected a rejection", c.expr)
		}
		re, ok := err.(*RejectError)
		if !ok {
			t.Fatalf("%s: expected RejectError, got %T: %v", c.expr, err, err)
		}
		if c.hint != "" && !strings.Contains(re.Msg, c.hint) {
			t.Fatalf("%s: rejection %q does not mention %q", c.expr, re.Msg, c.hint)
		}
	}
}

func TestCompileAcceptsBothQuoteStyles(t *testing.T) {
	env := testEnv()
	for _, expr := range []string{
		`user.department == "Sales"`,
		`user.department == 'Sales'`,
		`user.department == "Sa\"les" or true`,
	} {
		if _, err := CompileExpression(expr); err != nil {
			t.Fatalf("%s: unexpected rejection: %v", expr, err)
		}
	}
	got, err := Evaluate(`'Sales' == user.department`, env)
	if err != nil || !got {
		t.Fatalf("single-quoted literal did not evaluate: %v %v", got, err)
	}
}

func TestEvaluateShortCircuit(t *testing.T) {
	// The right side references a missing attribute; short-circuiting
	// must keep it from being evaluated.
	env := testEnv()
	got, err := Evaluate(`true or user.missing == "x"`, env)
	if err != nil || !got {
		t.Fatalf("or did not short-circuit: %v %v", got, err)
	}
	got, err = Evaluate(`false and user.missing == "x"`, env)
	if err != nil || got {
		t.Fatalf("and did not short-circuit: %v %v", got, err)
	}
}

func TestExpressionIsDeterministic(t *testing.T) {
	x, err := CompileExpression(`user.department == "Sales" and 8 <= ctx.hour < 18`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	env := testEnv()
	for i := 0; i < 50; i++ {
		got, err := x.Evaluate(env)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if !got {
			t.Fatalf("iteration %d: result flipped to false", i)
		}
	}
}

func TestExpressionStringRoundTrip(t *testing.T) {
	src := `user.clearance >= 2 and resource.app == "vault"`
	x, err := CompileExpression(src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if x.String() != src {
		t.Fatalf("String() = %q, want %q", x.String(), src)
	}
}
