package imgcrypt

import (
	"bytes"
	"testing"
)

func TestRasterStepper(t *testing.T) {
	// 2x2 RGB carrier: 12 channel values, one bit each.
	stepper := makeRasterStepper(NewBuffer(2, 2, 3))

	if stepper.x != 0 || stepper.y != 0 || stepper.channel != 0 {
		t.Errorf("Initial state incorrect: %+v", stepper)
	}

	stepper.step()
	if stepper.channel != 1 || stepper.x != 0 {
		t.Errorf("Step 1 failed: %+v", stepper)
	}

	stepper.step()
	if stepper.channel != 2 {
		t.Errorf("Step 2 failed: %+v", stepper)
	}

	// Channel 2 -> channel 0 of the next pixel.
	stepper.step()
	if stepper.channel != 0 || stepper.x != 1 || stepper.y != 0 {
		t.Errorf("Step 3 (pixel change) failed: %+v", stepper)
	}

	stepper.step() // x=1, ch=1
	stepper.step() // x=1, ch=2
	stepper.step() // y=1, x=0, ch=0

	if stepper.y != 1 || stepper.x != 0 {
		t.Errorf("Row change failed: %+v", stepper)
	}
	if got := stepper.offset(); got != 6 {
		t.Errorf("offset() = %d; want 6", got)
	}
}

func TestRasterStepperOverflow(t *testing.T) {
	// 2x1 grayscale: capacity 2 bits.
	stepper := makeRasterStepper(NewBuffer(2, 1, 1))

	if err := stepper.writeBit(1); err != nil {
		t.Errorf("First write should succeed: %v", err)
	}
	if err := stepper.writeBit(1); err != nil {
		t.Errorf("Second write should succeed: %v", err)
	}
	if err := stepper.writeBit(1); err == nil {
		t.Error("Expected error when writing past the carrier, got nil")
	}
	if _, err := stepper.readBit(); err == nil {
		t.Error("Expected error when reading past the carrier, got nil")
	}
}

func TestRasterStepperReadWriteBytes(t *testing.T) {
	buf := NewBuffer(4, 4, 1)
	for i := range buf.Pix {
		buf.Pix[i] = 0xF0
	}
	want := []byte{0xC3, 0x5A}

	w := makeRasterStepper(buf)
	for i := 0; i < len(want)*8; i++ {
		if err := w.writeBit(payloadBit(want, i)); err != nil {
			t.Fatalf("writeBit(%d) failed: %v", i, err)
		}
	}
	for i, v := range buf.Pix {
		if v&0xFE != 0xF0 {
			t.Fatalf("Pix[%d] = %#x; only the LSB may change", i, v)
		}
	}

	got, err := makeRasterStepper(buf).readBytes(len(want))
	if err != nil {
		t.Fatalf("readBytes failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("readBytes = %x; want %x", got, want)
	}
}
