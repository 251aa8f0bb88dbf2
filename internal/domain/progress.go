package domain

// ProgressFunc reports download progress.
// Called repeatedly during pagination: (300, 733), (600, 733), ...
type ProgressFunc func(loaded, total int)
