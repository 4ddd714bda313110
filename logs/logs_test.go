package logs_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/influx6/mgoquery"
	"github.com/influx6/mgoquery/logs"
	"github.com/influx6/mgoquery/tests"
)

// TestLogger validates the logrus backed event log.
func TestLogger(t *testing.T) {
	t.Logf("Given the need to record events through logrus")
	{
		var buf bytes.Buffer
		var events mgoquery.EventLog = logs.New(&buf, "debug")

		t.Logf("\tWhen logging an event")
		{
			events.Log("req-1", "Select", "Started : Table[%s]", "think_user")

			out := buf.String()
			if !strings.Contains(out, "Started : Table[think_user]") || !strings.Contains(out, "context=req-1") || !strings.Contains(out, "func=Select") {
				t.Fatalf("\t%s\tShould have written the message with its fields: %s", tests.Failed, out)
			}
			t.Logf("\t%s\tShould have written the message with its fields", tests.Success)
		}

		t.Logf("\tWhen logging an error")
		{
			buf.Reset()
			events.Error("req-2", "Add", errors.New("duplicate key"), "Completed")

			out := buf.String()
			if !strings.Contains(out, "level=error") || !strings.Contains(out, "duplicate key") {
				t.Fatalf("\t%s\tShould have written the error entry: %s", tests.Failed, out)
			}
			t.Logf("\t%s\tShould have written the error entry", tests.Success)
		}

		t.Logf("\tWhen the driver writes a debug line")
		{
			buf.Reset()
			logs.NewMgoLogger(logs.New(&buf, "debug").Logger).Output(2, "Ping for 127.0.0.1:27017 is 1 ms\n")

			if !strings.Contains(buf.String(), "Ping for 127.0.0.1:27017") {
				t.Fatalf("\t%s\tShould have routed the line into logrus: %s", tests.Failed, buf.String())
			}
			t.Logf("\t%s\tShould have routed the line into logrus", tests.Success)
		}

		t.Logf("\tWhen discarding events")
		{
			var discard mgoquery.EventLog = logs.Discard
			discard.Log("ctx", "Select", "Started")
			discard.Error("ctx", "Select", errors.New("x"), "Completed")
			t.Logf("\t%s\tShould have accepted events without output", tests.Success)
		}
	}
}
