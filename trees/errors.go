package trees

import "fmt"

// ErrCapacityExceeded is returned when a non-Merk tree insertion would
// exceed a hard structural bound (dense tree full, MMR proof selection
// too large).
var ErrCapacityExceeded = fmt.Errorf("trees: capacity exceeded")
