package archive

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"voxport/internal/dataset"
)

var metadataHeader = []string{
	"speaker_id", "transcript_id", "transcript", "audio_path", "gender",
	"age_group", "education", "duration", "language", "snr", "domain",
}

func metadataRow(record dataset.AudioRecord) []string {
	return []string{
		record.SpeakerID,
		record.ID,
		record.Transcript,
		"audio/" + record.ID + ".wav",
		record.Gender,
		record.AgeGroup,
		record.Education,
		strconv.FormatFloat(record.Duration, 'f', -1, 64),
		record.Language,
		strconv.FormatFloat(record.SNR, 'f', -1, 64),
		record.Domain,
	}
}

func writeMetadataCSV(w io.Writer, records []dataset.AudioRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(metadataHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(metadataRow(record)); err != nil {
			return fmt.Errorf("write csv row for %s: %w", record.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeMetadataXLSX(w io.Writer, records []dataset.AudioRecord) error {
	book := excelize.NewFile()
	defer book.Close()

	sheet := book.GetSheetName(0)
	header := make([]any, len(metadataHeader))
	for i, name := range metadataHeader {
		header[i] = name
	}
	if err := book.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, record := range records {
		row := metadataRow(record)
		values := make([]any, len(row))
		for j, value := range row {
			values[j] = value
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write xlsx row for %s: %w", record.ID, err)
		}
	}
	if err := book.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
