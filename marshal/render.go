package marshal

import (
	"fmt"
	"strings"

	"github.com/danderson/dbusgen"
)

// Indent returns text with every non-empty line prefixed by n tabs.
func Indent(text string, n int) string {
	if n <= 0 || text == "" {
		return text
	}
	prefix := strings.Repeat("\t", n)
	var ret strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if line != "" && line != "\n" {
			ret.WriteString(prefix)
		}
		ret.WriteString(line)
	}
	return ret.String()
}

// Render returns the C source code for b.
func Render(b *Block) string {
	var ret strings.Builder
	for _, s := range b.Stmts {
		renderStmt(&ret, s)
	}
	return ret.String()
}

func renderStmt(out *strings.Builder, s Stmt) {
	f := func(msg string, args ...any) {
		fmt.Fprintf(out, msg, args...)
	}

	switch v := s.(type) {
	case *Append:
		f("/* Marshal a %s onto the message */\n", v.Type)
		f("if (! dbus_message_iter_append_basic (&%s, %s, &%s)) {\n", v.Iter, v.Tag, v.Value)
		f("%s}\n", renderRecovery(v.Recovery))
	case *Container:
		switch v.Kind {
		case dbusgen.CategoryArray:
			f("/* Marshal an array onto the message */\n")
			f("if (! dbus_message_iter_open_container (&%s, %s, %q, &%s)) {\n", v.Iter, v.Tag, v.Signature, v.Sub)
		case dbusgen.CategoryStruct, dbusgen.CategoryDictEntry:
			f("/* Marshal a structure onto the message */\n")
			f("if (! dbus_message_iter_open_container (&%s, %s, NULL, &%s)) {\n", v.Iter, v.Tag, v.Sub)
		default:
			panic(fmt.Sprintf("unknown container kind %s", v.Kind))
		}
		f("%s}\n", renderRecovery(v.Recovery))
		f("\n")
		out.WriteString(Render(v.Body))
		f("if (! dbus_message_iter_close_container (&%s, &%s)) {\n", v.Iter, v.Sub)
		f("%s}\n", renderRecovery(v.Recovery))
	case *Loop:
		switch b := v.Bound.(type) {
		case Counted:
			f("for (size_t %s = 0; %s < %s; %s++) {\n", v.Index, v.Index, b.Len, v.Index)
		case Sentinel:
			f("for (size_t %s = 0; %s[%s]; %s++) {\n", v.Index, b.Array, v.Index, v.Index)
		default:
			panic(fmt.Sprintf("unknown loop bound %T", v.Bound))
		}
		var decls strings.Builder
		for _, l := range v.Locals.Vars() {
			fmt.Fprintf(&decls, "%s;\n", l)
		}
		out.WriteString(Indent(decls.String(), 1))
		f("\n")
		out.WriteString(Indent(renderAssigns(v.Assigns), 1))
		f("\n")
		out.WriteString(Indent(Render(v.Body), 1))
		f("}\n")
		f("\n")
	case *Member:
		out.WriteString(renderAssigns(v.Assigns))
		f("\n")
		out.WriteString(Render(v.Body))
		f("\n")
	default:
		panic(fmt.Sprintf("unknown statement %T", s))
	}
}

func renderAssigns(as []*Assign) string {
	var ret strings.Builder
	for _, a := range as {
		switch src := a.Src.(type) {
		case IndexExpr:
			fmt.Fprintf(&ret, "%s = %s[%s];\n", a.Dst, src.Array, src.Index)
		case FieldExpr:
			fmt.Fprintf(&ret, "%s = %s->%s;\n", a.Dst, src.Record, src.FieldName())
		default:
			panic(fmt.Sprintf("unknown expression %T", a.Src))
		}
	}
	return ret.String()
}

func renderRecovery(r Recovery) string {
	s := string(r)
	if s != "" && !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return Indent(s, 1)
}
