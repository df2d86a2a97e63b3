// Package pool
// Author: momentics <momentics@gmail.com>
//
// Object and message pooling for task goroutines. Messages posted to a task
// come from the task's pool and return to it once processed.
package pool
