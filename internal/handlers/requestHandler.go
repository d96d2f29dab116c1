package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mferrand/ragapi/internal/adapter"
	"github.com/mferrand/ragapi/internal/adapter/utils"
	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/rag/ingest"
	"github.com/mferrand/ragapi/pkg/logger_i"
)

var logRH *logger_i.Logger

type newJobData struct {
	id           string
	documentID   string
	traceId      string
	documentName string
	documentPath string
}

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	return
}

// GetStatusHandler returns the current state of an ingestion job.
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		idString := utils.GetChiURLParam(r, "id")
		result, isFound := validateId(idString, traceFromContext(r))

		logRH.Debug("Get Status Request:", "URL path", r.URL.Path)
		if !isFound {
			WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
			return
		}

		writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
	}
}

// PostIngestHandler receives a document via multipart/form-data, saves it to a
// temporary directory and queues an ingestion job. Re-submitting an existing
// document_id replaces that document's chunks once the job runs.
func PostIngestHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {

		targetDir, errString := getTargetDirectory()

		if errString != "" {
			logRH.Error("Couldn't get target directory :", "err", errString)
			WriteErrorResponse(w, http.StatusInternalServerError, "", errString)
			return
		}

		err := r.ParseMultipartForm(config.MaxUploadSize)
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
			return
		}

		docName := r.FormValue("document_name")
		if docName == "" {
			WriteErrorResponse(w, http.StatusBadRequest, "", "document_name is required")
			return
		}

		//a caller-provided id re-ingests that document, otherwise a fresh one
		documentID := r.FormValue("document_id")
		if documentID == "" {
			documentID = utils.GetNewUUID()
		}

		fileReader, fileMetadata, err := r.FormFile("document")
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, docName, "Could not retrieve file")
			return
		}
		defer fileReader.Close()

		if !ingest.SupportedExtension(fileMetadata.Filename) {
			WriteErrorResponse(w, http.StatusBadRequest, docName, "Unsupported document format")
			return
		}

		filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), fileMetadata.Filename)
		tempFilePath := filepath.Join(targetDir, filename)
		destinationFileWriter, err := os.Create(tempFilePath)
		if err != nil {
			WriteErrorResponse(w, http.StatusInternalServerError, docName, "Storage error")
			return
		}
		defer destinationFileWriter.Close()

		if _, err := io.Copy(destinationFileWriter, fileReader); err != nil {
			WriteErrorResponse(w, http.StatusInternalServerError, docName, "Write error")
			return
		}

		newJob := newJobData{
			id:           utils.GetNewUUID(),
			documentID:   documentID,
			traceId:      traceFromContext(r),
			documentName: docName,
			documentPath: tempFilePath,
		}
		CreateNewJob(newJob)
		writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(jobFromNewData(newJob)))
		return
	}
	logRH.Warn("Invalid Context by request ", r.RemoteAddr)
}

// GetDocumentHandler returns the lifecycle record of one ingested document.
func GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		documentID := utils.GetChiURLParam(r, "id")
		record, found := handlerInstance.service.DocumentStore.GetDocument(r.Context(), documentID)
		if !found {
			WriteErrorResponse(w, http.StatusNotFound, documentID, "Document not found")
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToDocumentResponse(record))
	}
}

// DeleteDocumentHandler removes a document's vector points and its record.
func DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		documentID := utils.GetChiURLParam(r, "id")
		if documentID == "" {
			WriteErrorResponse(w, http.StatusBadRequest, "", "document id is required")
			return
		}
		if err := handlerInstance.ragService.DeleteDocument(r.Context(), documentID); err != nil {
			logRH.Error("Document delete failed", "documentID", documentID, "err", err)
			WriteErrorResponse(w, http.StatusBadGateway, documentID, "Could not delete document")
			return
		}
		writeJsonResponse(w, http.StatusOK, map[string]string{"id": documentID, "status": "deleted"})
	}
}

func traceFromContext(r *http.Request) string {
	if trace, ok := r.Context().Value(config.TRACE_ID_KEY).(string); ok {
		return trace
	}
	return ""
}
