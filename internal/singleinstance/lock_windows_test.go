//go:build windows

package singleinstance

import "testing"

func TestTryLock(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "first lock succeeds",
			run: func(t *testing.T) {
				lock, err := TryLock(`Global\rxoverlay-test-first`)
				if err != nil {
					t.Fatalf("TryLock failed: %v", err)
				}
				if err := lock.Release(); err != nil {
					t.Fatalf("Release failed: %v", err)
				}
			},
		},
		{
			name: "second lock returns ErrAlreadyRunning",
			run: func(t *testing.T) {
				lock1, err := TryLock(`Global\rxoverlay-test-second`)
				if err != nil {
					t.Fatalf("first TryLock failed: %v", err)
				}
				defer lock1.Release()

				lock2, err := TryLock(`Global\rxoverlay-test-second`)
				if err != ErrAlreadyRunning {
					t.Fatalf("second TryLock: got err=%v, want ErrAlreadyRunning", err)
				}
				if lock2 != nil {
					t.Fatal("second TryLock returned a lock alongside ErrAlreadyRunning")
				}
			},
		},
		{
			name: "reacquirable after release",
			run: func(t *testing.T) {
				lock1, err := TryLock(`Global\rxoverlay-test-reacquire`)
				if err != nil {
					t.Fatalf("first TryLock failed: %v", err)
				}
				if err := lock1.Release(); err != nil {
					t.Fatalf("Release failed: %v", err)
				}

				lock2, err := TryLock(`Global\rxoverlay-test-reacquire`)
				if err != nil {
					t.Fatalf("TryLock after release failed: %v", err)
				}
				lock2.Release()
			},
		},
		{
			name: "release idempotent and nil-safe",
			run: func(t *testing.T) {
				lock, err := TryLock(`Global\rxoverlay-test-idem`)
				if err != nil {
					t.Fatalf("TryLock failed: %v", err)
				}
				if err := lock.Release(); err != nil {
					t.Fatalf("first Release failed: %v", err)
				}
				if err := lock.Release(); err != nil {
					t.Fatalf("second Release should be a no-op, got: %v", err)
				}

				var nilLock *Lock
				if err := nilLock.Release(); err != nil {
					t.Fatalf("nil Release should be a no-op, got: %v", err)
				}
			},
		},
		{
			name: "empty name rejected",
			run: func(t *testing.T) {
				if _, err := TryLock(""); err == nil {
					t.Fatal("TryLock with empty name should fail")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.run)
	}
}
