package scan

import "testing"

func TestPartition_Coverage(t *testing.T) {
	for workers := 1; workers <= 8; workers++ {
		ranges := Partition(workers)
		if len(ranges) != workers {
			t.Fatalf("Partition(%d) returned %d ranges", workers, len(ranges))
		}

		var seen [LastHost + 1]int
		for _, r := range ranges {
			for octet := r.Start; octet < r.End(); octet++ {
				if octet < FirstHost || octet > LastHost {
					t.Fatalf("Partition(%d) range %+v leaves 1..254", workers, r)
				}
				seen[octet]++
			}
		}
		for octet := FirstHost; octet <= LastHost; octet++ {
			if seen[octet] != 1 {
				t.Errorf("Partition(%d): octet %d covered %d times, want 1", workers, octet, seen[octet])
			}
		}
	}
}

func TestPartition_Ranges(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    []Range
	}{
		{"single worker", 1, []Range{{1, 254}}},
		{"two workers", 2, []Range{{1, 128}, {129, 126}}},
		{"four workers", 4, []Range{{1, 64}, {65, 64}, {129, 64}, {193, 62}}},
		{"seven workers", 7, []Range{{1, 37}, {38, 37}, {75, 37}, {112, 37}, {149, 37}, {186, 37}, {223, 32}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Partition(tt.workers)
			if len(got) != len(tt.want) {
				t.Fatalf("Partition(%d) = %v, want %v", tt.workers, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Partition(%d)[%d] = %+v, want %+v", tt.workers, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPartition_MoreWorkersThanHosts(t *testing.T) {
	ranges := Partition(300)

	covered := 0
	for i, r := range ranges {
		covered += r.Len
		if i >= LastHost && r.Len != 0 {
			t.Errorf("range %d = %+v, want empty", i, r)
		}
	}
	if covered != LastHost {
		t.Errorf("covered %d hosts, want %d", covered, LastHost)
	}
}

func TestPartition_NoWorkers(t *testing.T) {
	if got := Partition(0); got != nil {
		t.Errorf("Partition(0) = %v, want nil", got)
	}
}
