// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package slice holds the generic helpers [slices] does not provide.

They are used to turn ledger rows into response views and to fold
per-file upload results into one ingestion outcome.
*/
package slice

// Map applies transform to every element. A nil input stays nil.
func Map[T, U any](input []T, transform func(T) U) []U {
	if input == nil {
		return nil
	}

	result := make([]U, len(input))
	for index, value := range input {
		result[index] = transform(value)
	}
	return result
}

// Filter keeps the elements for which keep returns true, in order.
func Filter[T any](input []T, keep func(T) bool) []T {
	var result []T
	for _, value := range input {
		if keep(value) {
			result = append(result, value)
		}
	}
	return result
}

// Reduce folds input into a single value, left to right.
func Reduce[T, U any](input []T, initial U, fold func(accumulator U, current T) U) U {
	result := initial
	for _, value := range input {
		result = fold(result, value)
	}
	return result
}
