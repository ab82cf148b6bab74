package config

import "testing"

func TestHTTPTimeoutOrdering(t *testing.T) {
	if HTTPWrite <= RequestProcessing {
		t.Errorf("HTTPWrite (%v) must exceed RequestProcessing (%v)", HTTPWrite, RequestProcessing)
	}
	if HTTPIdle < HTTPWrite {
		t.Errorf("HTTPIdle (%v) should not be shorter than HTTPWrite (%v)", HTTPIdle, HTTPWrite)
	}
	if SlowBatchThreshold < SlowQueryThreshold {
		t.Errorf("SlowBatchThreshold (%v) below SlowQueryThreshold (%v)", SlowBatchThreshold, SlowQueryThreshold)
	}
}
