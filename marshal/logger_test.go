package marshal

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/danderson/dbusgen"
)

func TestSetLoggerNil(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	SetLogger(zaptest.NewLogger(t))
	Logger().Debug("installed")

	SetLogger(nil)
	if Logger() == nil {
		t.Fatal("Logger() is nil after SetLogger(nil)")
	}
	var g Generator
	g.Marshal(dbusgen.MustParseType("a(is)"), "iter", "v", "return -1;\n")
}
