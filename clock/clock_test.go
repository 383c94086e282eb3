package clock

import "testing"

func TestTickSendMonotonic(t *testing.T) {
	c := New()
	var prev uint64
	for i := 0; i < 5; i++ {
		v := c.TickSend()
		if v <= prev {
			t.Fatalf("TickSend not strictly increasing: prev=%d v=%d", prev, v)
		}
		prev = v
	}
}

func TestTickRecvTakesMax(t *testing.T) {
	c := New()
	c.TickSend() // t=1

	if got := c.TickRecv(5); got != 6 {
		t.Fatalf("TickRecv(5) with local=1: got %d, want 6", got)
	}

	// Local clock (6) now exceeds peer time (2): rule still adds 1.
	if got := c.TickRecv(2); got != 7 {
		t.Fatalf("TickRecv(2) with local=6: got %d, want 7", got)
	}
}

func TestValueDoesNotAdvance(t *testing.T) {
	c := New()
	c.TickSend()
	c.TickSend()
	v1 := c.Value()
	v2 := c.Value()
	if v1 != v2 {
		t.Fatalf("Value() advanced the clock: %d != %d", v1, v2)
	}
}
