package adapter

import (
	"fmt"

	"github.com/mferrand/ragapi/internal/api"
	"github.com/mferrand/ragapi/internal/domain/jobModel"
	"github.com/mferrand/ragapi/internal/domain/ragModel"
)

func ToInitJobResponse(job jobModel.Job) api.InitJobResponse {
	return api.InitJobResponse{
		Id:         job.Id,
		DocumentID: job.JobPayload.DocumentID,
		StatusURL:  fmt.Sprintf("status/%s", job.Id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {
	response := api.JobResponse{
		Id: job.Id,
		Result: api.Result{
			Status: string(job.Status),
			Step:   string(job.CurrentStep),
		},
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
	}

	if job.Status == jobModel.JobStatusComplete {
		response.Result.Ingest = &api.IngestResult{
			DocumentID: job.JobPayload.DocumentID,
			FileName:   job.JobPayload.IngestFileName,
			ChunkCount: job.JobPayload.ChunkCount,
		}
	}

	if job.Status == jobModel.JobStatusError {
		response.Error = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	return response
}

func ToConversationResponse(id string, turns []ragModel.ConversationTurn) api.ConversationResponse {
	response := api.ConversationResponse{
		ConversationID: id,
		Turns:          make([]api.ConversationTurnResponse, 0, len(turns)),
	}
	for _, turn := range turns {
		response.Turns = append(response.Turns, api.ConversationTurnResponse{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}
	return response
}

func ToDocumentResponse(record ragModel.DocumentRecord) api.DocumentResponse {
	return api.DocumentResponse{
		ID:           record.ID,
		OriginalName: record.OriginalName,
		Status:       string(record.Status),
		StatusDetail: record.StatusDetail,
		ChunkCount:   record.ChunkCount,
		UpdatedAt:    record.UpdatedAt,
	}
}

func BadRequest(id string, message string, code int) api.JobResponse {
	return api.JobResponse{
		Id:     id,
		Result: api.Result{Status: string(api.StatusError)},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: message,
			Retry:   false,
		},
	}
}
