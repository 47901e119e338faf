package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/raggio-engine/raggio/internal/adapter"
	"github.com/raggio-engine/raggio/internal/adapter/utils"
	"github.com/raggio-engine/raggio/internal/api"
	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/rag"
	"github.com/raggio-engine/raggio/pkg/logger_i"
)

var logRH *logger_i.Logger

// queueing might move out of handlers into its own package at some point
// so the handler funcs only assemble this struct and hand it over
type newIngestData struct {
	documentId string
	name       string
	sourcePath string
	filePath   string
	rawText    string
	inline     bool
	traceId    string
}

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	return
}

// SearchHandler godoc
// @Summary      Search the indexed documents
// @Description  Embeds the query, ranks every indexed chunk by cosine similarity and returns the strongest matches. A repeated query is served from the semantic cache.
// @Tags         Retrieval
// @Accept       json
// @Produce      json
// @Param        request  body      api.SearchRequest   true  "Query with optional top_k, similarity_threshold and fields"
// @Success      200      {object}  api.SearchResponse  "Ranked matches, empty when nothing clears the threshold"
// @Failure      400      {object}  api.ErrorResponse   "Invalid query parameters"
// @Failure      502      {object}  api.ErrorResponse   "Embedding provider rejected the request"
// @Failure      503      {object}  api.ErrorResponse   "Embedding provider unavailable"
// @Router       /search [post]
func SearchHandler(w http.ResponseWriter, request *http.Request) {

	if validateContext(request.Context()) {

		var requestData api.SearchRequest
		defer func(Body io.ReadCloser) {
			err := Body.Close()
			if err != nil {
				logRH.Error("Couldn't close the Search handler reader :", err)
			}
		}(request.Body)
		if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil {
			logRH.Warn("Bad Search Request: ", "error:", err)
			WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
			return
		}

		out, err := SearchDocuments(request.Context(), rag.SearchQuery{
			Query:     requestData.Query,
			TopK:      requestData.TopK,
			Threshold: requestData.Threshold,
			Fields:    requestData.Fields,
		})
		if err != nil {
			writeDomainError(w, "", err)
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToSearchResponse(requestData.Query, out))
		return
	}
	logRH.Warn("Invalid Context by request ", request.RemoteAddr)
}

// AnswerHandler godoc
// @Summary      Answer a question from the indexed documents
// @Description  Runs the retrieval pipeline and asks the completion model to answer using only the retrieved passages. Returns a fixed reply when nothing relevant is indexed.
// @Tags         Retrieval
// @Accept       json
// @Produce      json
// @Param        request  body      api.AnswerRequest   true  "Question with optional top_k, similarity_threshold and fields"
// @Success      200      {object}  api.AnswerResponse  "Grounded answer with its source documents"
// @Failure      400      {object}  api.ErrorResponse   "Invalid question"
// @Failure      502      {object}  api.ErrorResponse   "Provider rejected the request"
// @Failure      503      {object}  api.ErrorResponse   "Provider unavailable"
// @Router       /answer [post]
func AnswerHandler(w http.ResponseWriter, request *http.Request) {

	if validateContext(request.Context()) {

		var requestData api.AnswerRequest
		defer func(Body io.ReadCloser) {
			err := Body.Close()
			if err != nil {
				logRH.Error("Couldn't close the Answer handler reader :", err)
			}
		}(request.Body)
		if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil {
			logRH.Warn("Bad Answer Request: ", "error:", err)
			WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
			return
		}

		out, err := AnswerQuestion(request.Context(), rag.SearchQuery{
			Query:     requestData.Question,
			TopK:      requestData.TopK,
			Threshold: requestData.Threshold,
			Fields:    requestData.Fields,
		})
		if err != nil {
			writeDomainError(w, "", err)
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToAnswerResponse(requestData.Question, out))
		return
	}
	logRH.Warn("Invalid Context by request ", request.RemoteAddr)
}

// PostDocumentHandler handles the uploading of PDF, DOCX or plain text documents.
// @Summary      Upload a document for ingestion
// @Description  Receives a file via multipart/form-data, saves it to a temporary directory, registers a Pending document and queues its ingestion.
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        document_name  formData  string  true  "The display name of the document"
// @Param        document       formData  file    true  "The PDF, DOCX or text file to upload"
// @Success      202  {object}  api.InitDocumentResponse "Accepted - returns document_id and status_url"
// @Failure      400  {object}  api.ErrorResponse "Bad Request - Missing fields or file too large"
// @Failure      500  {object}  api.ErrorResponse "Internal Server Error - Storage or Write Error"
// @Failure      503  {object}  api.ErrorResponse "Ingest queue is full"
// @Router       /documents [post]
func PostDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {

		targetDir, errString := getTargetDirectory()
		if errString != "" {
			logRH.Error("Couldn't get target directory :", "err", errString)
			WriteErrorResponse(w, http.StatusInternalServerError, "", errString)
			return
		}

		const maxUploadSize = 32 << 20 //32mb
		err := r.ParseMultipartForm(maxUploadSize)
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
			return
		}

		//process request
		docName := r.FormValue("document_name")
		if docName == "" {
			WriteErrorResponse(w, http.StatusBadRequest, "", "document_name is required")
			return
		}

		//get the document name the user uploads
		fileReader, fileMetadata, err := r.FormFile("document")
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, docName, "Could not retrieve file")
			return
		}
		defer fileReader.Close()

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

		data := newIngestData{
			documentId: utils.GetNewUUID(),
			name:       docName,
			sourcePath: fileMetadata.Filename,
			filePath:   tempFilePath,
			traceId:    r.Context().Value(config.TRACE_ID_KEY).(string),
		}
		documentId, err := QueueNewDocument(data)
		if err != nil {
			discardTempFile(tempFilePath)
			writeDomainError(w, docName, err)
			return
		}
		writeJsonResponse(w, http.StatusAccepted, adapter.ToInitDocumentResponse(documentId))
		return
	}
	logRH.Warn("Invalid Context by request ", r.RemoteAddr)
}

// PostDocumentTextHandler godoc
// @Summary      Ingest raw text as a document
// @Description  Accepts a JSON body with a name and the raw text, registers a Pending document and queues its ingestion without touching the filesystem.
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        request  body      api.IngestTextRequest     true  "Document name, optional source path and the text to index"
// @Success      202      {object}  api.InitDocumentResponse  "Accepted - returns document_id and status_url"
// @Failure      400      {object}  api.ErrorResponse         "Missing name or text"
// @Failure      503      {object}  api.ErrorResponse         "Ingest queue is full"
// @Router       /documents/text [post]
func PostDocumentTextHandler(w http.ResponseWriter, request *http.Request) {

	if validateContext(request.Context()) {

		var requestData api.IngestTextRequest
		defer func(Body io.ReadCloser) {
			err := Body.Close()
			if err != nil {
				logRH.Error("Couldn't close the Ingest text handler reader :", err)
			}
		}(request.Body)
		if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil || requestData.Name == "" || requestData.Text == "" {
			logRH.Warn("Bad Ingest Text Request: ", "error:", err, "name:", requestData.Name)
			WriteErrorResponse(w, http.StatusBadRequest, "", "name and text are required")
			return
		}

		data := newIngestData{
			documentId: utils.GetNewUUID(),
			name:       requestData.Name,
			sourcePath: requestData.Path,
			rawText:    requestData.Text,
			inline:     true,
			traceId:    request.Context().Value(config.TRACE_ID_KEY).(string),
		}
		documentId, err := QueueNewDocument(data)
		if err != nil {
			writeDomainError(w, requestData.Name, err)
			return
		}
		writeJsonResponse(w, http.StatusAccepted, adapter.ToInitDocumentResponse(documentId))
		return
	}
	logRH.Warn("Invalid Context by request ", request.RemoteAddr)
}

// ReingestDocumentHandler godoc
// @Summary      Re-process a document with new content
// @Description  Receives a replacement file for an existing document and queues a re-ingestion. The previously indexed chunks stay in place until the new ones land in one swap.
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        documentID  path      string  true  "Document ID"
// @Param        document    formData  file    true  "The replacement file"
// @Success      202  {object}  api.InitDocumentResponse "Accepted - returns document_id and status_url"
// @Failure      400  {object}  api.ErrorResponse "Missing file or bad request"
// @Failure      404  {object}  api.ErrorResponse "Document not found"
// @Failure      503  {object}  api.ErrorResponse "Ingest queue is full"
// @Router       /documents/{documentID} [put]
func ReingestDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {

		documentId := utils.GetChiURLParam(r, "documentID")
		if documentId == "" {
			WriteErrorResponse(w, http.StatusBadRequest, "", "document id is required")
			return
		}

		targetDir, errString := getTargetDirectory()
		if errString != "" {
			logRH.Error("Couldn't get target directory :", "err", errString)
			WriteErrorResponse(w, http.StatusInternalServerError, documentId, errString)
			return
		}

		const maxUploadSize = 32 << 20 //32mb
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, documentId, "File too large or bad request")
			return
		}

		fileReader, fileMetadata, err := r.FormFile("document")
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, documentId, "Could not retrieve file")
			return
		}
		defer fileReader.Close()

		filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), fileMetadata.Filename)
		tempFilePath := filepath.Join(targetDir, filename)
		destinationFileWriter, err := os.Create(tempFilePath)
		if err != nil {
			WriteErrorResponse(w, http.StatusInternalServerError, documentId, "Storage error")
			return
		}
		defer destinationFileWriter.Close()

		if _, err := io.Copy(destinationFileWriter, fileReader); err != nil {
			WriteErrorResponse(w, http.StatusInternalServerError, documentId, "Write error")
			return
		}

		data := newIngestData{
			documentId: documentId,
			filePath:   tempFilePath,
			traceId:    r.Context().Value(config.TRACE_ID_KEY).(string),
		}
		if err := QueueReingest(data); err != nil {
			discardTempFile(tempFilePath)
			writeDomainError(w, documentId, err)
			return
		}
		writeJsonResponse(w, http.StatusAccepted, adapter.ToInitDocumentResponse(documentId))
		return
	}
	logRH.Warn("Invalid Context by request ", r.RemoteAddr)
}

// GetDocumentStatusHandler godoc
// @Summary      Get document status
// @Description  Retrieves a document with its processing status and how many chunks it produced. The status is the only signal of ingestion progress.
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        documentID  path      string  true  "Document ID"
// @Success      200  {object}  api.DocumentResponse  "The current state of the document"
// @Failure      404  {object}  api.ErrorResponse     "Document not found"
// @Router       /documents/{documentID} [get]
func GetDocumentStatusHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		//use chi get the url id
		idString := utils.GetChiURLParam(r, "documentID")

		logRH.Debug("Get Status Request:", "URL path", r.URL.Path)
		doc, chunkCount, err := GetDocumentStatus(idString, r.Context().Value(config.TRACE_ID_KEY).(string))
		if err != nil {
			writeDomainError(w, idString, err)
			return
		}

		writeJsonResponse(w, http.StatusOK, adapter.ToDocumentResponse(doc, chunkCount))
	}
}

// ListDocumentsHandler godoc
// @Summary      List indexed documents
// @Description  Returns every known document with its status and chunk count, oldest first.
// @Tags         Documents
// @Produce      json
// @Success      200  {object}  api.DocumentListResponse  "All documents"
// @Router       /documents [get]
func ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		summaries, err := ListDocumentSummaries(r.Context().Value(config.TRACE_ID_KEY).(string))
		if err != nil {
			writeDomainError(w, "", err)
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToDocumentListResponse(summaries))
	}
}

// DeleteDocumentHandler godoc
// @Summary      Delete a document
// @Description  Removes the document and every chunk and embedding derived from it.
// @Tags         Documents
// @Param        documentID  path  string  true  "Document ID"
// @Success      204  "Deleted"
// @Failure      404  {object}  api.ErrorResponse  "Document not found"
// @Router       /documents/{documentID} [delete]
func DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		idString := utils.GetChiURLParam(r, "documentID")
		if idString == "" {
			WriteErrorResponse(w, http.StatusBadRequest, "", "document id is required")
			return
		}

		if err := RemoveDocument(r.Context(), idString); err != nil {
			writeDomainError(w, idString, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AnnotateChunkHandler godoc
// @Summary      Annotate a chunk
// @Description  Patches the notes and details of a chunk. Changed fields are re-embedded synchronously so retrieval sees the annotation immediately, a field set to its empty value is cleared.
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        documentID  path      string                    true  "Document ID"
// @Param        chunkID     path      string                    true  "Chunk ID"
// @Param        request     body      api.AnnotateChunkRequest  true  "Fields to patch, omitted fields stay untouched"
// @Success      200  {object}  api.ChunkResponse  "The updated chunk"
// @Failure      400  {object}  api.ErrorResponse  "Invalid patch"
// @Failure      404  {object}  api.ErrorResponse  "Document or chunk not found"
// @Failure      503  {object}  api.ErrorResponse  "Embedding provider unavailable"
// @Router       /documents/{documentID}/chunks/{chunkID} [patch]
func AnnotateChunkHandler(w http.ResponseWriter, request *http.Request) {

	if validateContext(request.Context()) {

		documentId := utils.GetChiURLParam(request, "documentID")
		chunkId := utils.GetChiURLParam(request, "chunkID")

		var requestData api.AnnotateChunkRequest
		defer func(Body io.ReadCloser) {
			err := Body.Close()
			if err != nil {
				logRH.Error("Couldn't close the Annotate handler reader :", err)
			}
		}(request.Body)
		if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil {
			logRH.Warn("Bad Annotate Request: ", "error:", err)
			WriteErrorResponse(w, http.StatusBadRequest, chunkId, "Bad Request")
			return
		}

		chunk, err := AnnotateChunk(request.Context(), documentId, chunkId, rag.AnnotationPatch{
			Notes:   requestData.Notes,
			Details: requestData.Details,
		})
		if err != nil {
			writeDomainError(w, chunkId, err)
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToChunkResponse(chunk))
		return
	}
	logRH.Warn("Invalid Context by request ", request.RemoteAddr)
}

func discardTempFile(path string) {
	if err := os.Remove(path); err != nil {
		logRH.Error("Couldn't remove temp file :", "path", path, "error", err)
	}
}
