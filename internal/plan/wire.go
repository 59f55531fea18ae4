package plan

import "phredmean/pkg/api"

// ToAPI converts w to its wire form.
func (w WorkItem) ToAPI() api.WorkItemV1 {
	return api.WorkItemV1{Source: w.Source, Size: w.Size, Index: w.Index, Start: w.Start, Stop: w.Stop}
}

// FromAPI converts a wire work item.
func FromAPI(v api.WorkItemV1) WorkItem {
	return WorkItem{Source: v.Source, Size: v.Size, Index: v.Index, Start: v.Start, Stop: v.Stop}
}
